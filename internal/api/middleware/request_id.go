// Package middleware holds the gin middleware shared by API routes.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the header carrying the request id.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key for the request id.
	RequestIDKey = "request_id"
)

// RequestID tags every request with an id for log correlation. A
// client-supplied X-Request-ID is kept; otherwise a UUID is minted. The
// id is stored in the gin context and echoed on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)

		c.Next()
	}
}
