// Package response defines the envelope shared by all API replies.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SuccessResponse wraps successful reply data.
type SuccessResponse struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// ErrorResponse carries an error with the request id for correlation.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

// Success sends data with the given status code.
func Success(c *gin.Context, statusCode int, data interface{}, message string) {
	c.JSON(statusCode, SuccessResponse{
		Data:    data,
		Message: message,
	})
}

// Error sends an error reply tagged with the request id.
func Error(c *gin.Context, statusCode int, err string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		Error:   err,
		Details: details,
		TraceID: GetRequestID(c),
	})
}

// OK sends a 200 response.
func OK(c *gin.Context, data interface{}) {
	Success(c, http.StatusOK, data, "")
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}, message string) {
	Success(c, http.StatusCreated, data, message)
}

// BadRequest sends a 400 response.
func BadRequest(c *gin.Context, err string, details interface{}) {
	Error(c, http.StatusBadRequest, err, details)
}

// NotFound sends a 404 response.
func NotFound(c *gin.Context, err string) {
	Error(c, http.StatusNotFound, err, nil)
}

// InternalServerError sends a 500 response.
func InternalServerError(c *gin.Context, err string) {
	Error(c, http.StatusInternalServerError, err, nil)
}

// GetRequestID returns the request id set by the middleware, or mints
// one so error replies always carry a trace id.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return uuid.New().String()
}
