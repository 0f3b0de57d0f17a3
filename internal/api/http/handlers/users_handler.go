package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-directory/internal/api/dto"
	"github.com/spec-kit/user-directory/internal/auth"
	"github.com/spec-kit/user-directory/internal/domain"
	"github.com/spec-kit/user-directory/internal/service"
	apperrors "github.com/spec-kit/user-directory/pkg/util"
)

// UsersHandler exposes the directory CRUD endpoints. Authorization is
// enforced by the matrix guards on the routes; handlers only translate
// between HTTP and the service.
type UsersHandler struct {
	service *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{service: userService}
}

// List GET /api/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	input := service.ListInput{
		Page:     parseInt(c.Query("page"), 0),
		Size:     parseInt(c.Query("size"), 10),
		SortBy:   c.Query("sort_by", "id"),
		SortDesc: strings.EqualFold(c.Query("sort_dir", "asc"), "desc"),
	}

	page, err := h.service.List(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pageResponse(page)})
}

// ListAll GET /api/users/all.
func (h *UsersHandler) ListAll(c *fiber.Ctx) error {
	users, err := h.service.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponses(users)})
}

// Get GET /api/users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.service.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// GetByUsername GET /api/users/username/:username.
func (h *UsersHandler) GetByUsername(c *fiber.Ctx) error {
	user, err := h.service.GetByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// GetByEmail GET /api/users/email/:email.
func (h *UsersHandler) GetByEmail(c *fiber.Ctx) error {
	user, err := h.service.GetByEmail(c.UserContext(), c.Params("email"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// Create POST /api/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.service.Create(c.UserContext(), actorID(c), service.CreateUserInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Role:        req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// Update PUT /api/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.service.Update(c.UserContext(), actorID(c), c.Params("id"), service.UpdateUserInput{
		Username:    req.Username,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Role:        req.Role,
		Status:      req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// Delete DELETE /api/users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), actorID(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListByRole GET /api/users/role/:role.
func (h *UsersHandler) ListByRole(c *fiber.Ctx) error {
	users, err := h.service.ListByRole(c.UserContext(), c.Params("role"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponses(users)})
}

// ListByStatus GET /api/users/status/:status.
func (h *UsersHandler) ListByStatus(c *fiber.Ctx) error {
	users, err := h.service.ListByStatus(c.UserContext(), c.Params("status"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponses(users)})
}

// Search GET /api/users/search?name=.
func (h *UsersHandler) Search(c *fiber.Ctx) error {
	users, err := h.service.SearchByName(c.UserContext(), c.Query("name"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponses(users)})
}

// Activate PATCH /api/users/:id/activate.
func (h *UsersHandler) Activate(c *fiber.Ctx) error {
	user, err := h.service.Activate(c.UserContext(), actorID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// Deactivate PATCH /api/users/:id/deactivate.
func (h *UsersHandler) Deactivate(c *fiber.Ctx) error {
	user, err := h.service.Deactivate(c.UserContext(), actorID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// Suspend PATCH /api/users/:id/suspend.
func (h *UsersHandler) Suspend(c *fiber.Ctx) error {
	user, err := h.service.Suspend(c.UserContext(), actorID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// ChangeRole PATCH /api/users/:id/role/:role.
func (h *UsersHandler) ChangeRole(c *fiber.Ctx) error {
	user, err := h.service.ChangeRole(c.UserContext(), actorID(c), c.Params("id"), c.Params("role"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// Statistics GET /api/users/statistics.
func (h *UsersHandler) Statistics(c *fiber.Ctx) error {
	stats, err := h.service.Statistics(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

func actorID(c *fiber.Ctx) string {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		return principal.User.ID
	}
	return ""
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		PhoneNumber: user.PhoneNumber,
		Role:        user.Role,
		Status:      user.Status,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
		LastLogin:   user.LastLogin,
	}
}

func userResponses(users []domain.User) []dto.UserResponse {
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, userResponse(&users[i]))
	}
	return items
}

func pageResponse(page *service.UserPage) dto.PageResponse {
	return dto.PageResponse{
		Items:         userResponses(page.Items),
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
	}
}
