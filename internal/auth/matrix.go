package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-directory/internal/domain"
	apperrors "github.com/spec-kit/user-directory/pkg/util"
)

// Action identifies one directory operation for authorization purposes.
type Action string

const (
	ActionListUsers         Action = "users.list"
	ActionListAllUsers      Action = "users.list_all"
	ActionGetUser           Action = "users.get"
	ActionGetUserByUsername Action = "users.get_by_username"
	ActionGetUserByEmail    Action = "users.get_by_email"
	ActionCreateUser        Action = "users.create"
	ActionUpdateUser        Action = "users.update"
	ActionDeleteUser        Action = "users.delete"
	ActionListByRole        Action = "users.list_by_role"
	ActionListByStatus      Action = "users.list_by_status"
	ActionSearchUsers       Action = "users.search"
	ActionActivateUser      Action = "users.activate"
	ActionDeactivateUser    Action = "users.deactivate"
	ActionSuspendUser       Action = "users.suspend"
	ActionChangeRole        Action = "users.change_role"
	ActionViewStatistics    Action = "users.stats"
)

// rule is one row of the authorization matrix: the roles allowed outright,
// and whether targeting your own record is an additional path in.
type rule struct {
	roles map[domain.Role]struct{}
	self  bool
}

func roleSet(roles ...domain.Role) map[domain.Role]struct{} {
	set := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

var adminOnly = roleSet(domain.RoleAdmin)
var adminOrManager = roleSet(domain.RoleAdmin, domain.RoleManager)

// matrix is the single source of truth for who may do what. Actions missing
// from the table are denied.
var matrix = map[Action]rule{
	ActionListUsers:         {roles: adminOrManager},
	ActionListAllUsers:      {roles: adminOnly},
	ActionGetUser:           {roles: adminOrManager, self: true},
	ActionGetUserByUsername: {roles: adminOrManager},
	ActionGetUserByEmail:    {roles: adminOrManager},
	ActionCreateUser:        {roles: adminOrManager},
	ActionUpdateUser:        {roles: adminOrManager, self: true},
	ActionDeleteUser:        {roles: adminOnly},
	ActionListByRole:        {roles: adminOrManager},
	ActionListByStatus:      {roles: adminOrManager},
	ActionSearchUsers:       {roles: adminOrManager},
	ActionActivateUser:      {roles: adminOrManager},
	ActionDeactivateUser:    {roles: adminOrManager},
	ActionSuspendUser:       {roles: adminOnly},
	ActionChangeRole:        {roles: adminOnly},
	ActionViewStatistics:    {roles: adminOrManager},
}

// Authorize decides whether the caller may perform action against the target
// user id. targetID may be empty for collection-level actions. Fails closed.
func Authorize(principal *Principal, action Action, targetID string) error {
	if principal == nil || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	r, ok := matrix[action]
	if !ok {
		return apperrors.NewForbidden("action not permitted")
	}
	if _, allowed := r.roles[principal.User.Role]; allowed {
		return nil
	}
	if r.self && targetID != "" && principal.User.ID == targetID {
		return nil
	}
	return apperrors.NewForbidden("insufficient role")
}

// Require builds a fiber guard consulting the matrix for the given action,
// using the :id route parameter as the target when present.
func Require(action Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if err := Authorize(principal, action, c.Params("id")); err != nil {
			return err
		}
		return c.Next()
	}
}
