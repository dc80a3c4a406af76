package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/dhima/webhook-scheduler/internal/logging"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(_ context.Context) error { return f.err }

func TestHealth_WhenDatabaseReachable_ThenOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(logging.NewNoOpLogger(), &fakePinger{})
	r := gin.New()
	r.GET("/health", h.Health)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}

func TestHealth_WhenDatabaseDown_ThenDegraded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(logging.NewNoOpLogger(), &fakePinger{err: errors.New("connection refused")})
	r := gin.New()
	r.GET("/health", h.Health)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	assert.Contains(t, w.Body.String(), `"database":"unreachable"`)
}
