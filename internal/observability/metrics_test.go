package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_SnapshotCopiesCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("/api/users", "GET", 200, 5*time.Millisecond)
	m.RecordRequest("/api/users", "GET", 200, 7*time.Millisecond)
	m.RecordRequest("/api/users", "POST", 201, 9*time.Millisecond)
	m.RecordError("/api/users/:id", "GET", "NOT_FOUND")

	requests, errCounts := m.Snapshot()
	assert.EqualValues(t, 2, requests["/api/users|GET|200"])
	assert.EqualValues(t, 1, requests["/api/users|POST|201"])
	assert.EqualValues(t, 1, errCounts["/api/users/:id|GET|NOT_FOUND"])

	// the snapshot is a copy, not a view
	requests["/api/users|GET|200"] = 99
	fresh, _ := m.Snapshot()
	assert.EqualValues(t, 2, fresh["/api/users|GET|200"])
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/x", "GET", 200, 0)
	m.RecordError("/x", "GET", "INTERNAL_ERROR")
	requests, errCounts := m.Snapshot()
	assert.Nil(t, requests)
	assert.Nil(t, errCounts)
}
