package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestOK_WrapsDataInEnvelope(t *testing.T) {
	c, w := newTestContext()

	OK(c, map[string]string{"id": "evt-1"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"id":"evt-1"}}`, w.Body.String())
}

func TestCreated_IncludesMessage(t *testing.T) {
	c, w := newTestContext()

	Created(c, map[string]string{"id": "evt-1"}, "event scheduled")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"event scheduled"`)
}

func TestError_CarriesRequestIDFromContext(t *testing.T) {
	c, w := newTestContext()
	c.Set("request_id", "req-42")

	BadRequest(c, "invalid request body", "schedule_time is required")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"trace_id":"req-42"`)
	assert.Contains(t, w.Body.String(), `"details":"schedule_time is required"`)
}

func TestError_MintsTraceIDWhenMiddlewareAbsent(t *testing.T) {
	c, w := newTestContext()

	NotFound(c, "event not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"trace_id":"`)
}

func TestInternalServerError_OmitsDetails(t *testing.T) {
	c, w := newTestContext()

	InternalServerError(c, "failed to create event")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), `"details"`)
}
