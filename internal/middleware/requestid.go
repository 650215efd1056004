// requestid.go tags every request with a correlation identifier so a single
// dashboard action can be traced across the access log, the audit trail, and
// any error reports the client files.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request identifier on both request and response.
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the gin.Context key holding the request ID string.
const RequestIDKey = "request_id"

// An inbound ID longer than this is assumed hostile (header stuffing) and
// replaced rather than echoed.
const maxInboundIDLength = 128

// RequestIDMiddleware ensures the request carries an identifier: an inbound
// X-Request-ID from a gateway or load balancer is kept, anything else gets a
// fresh UUID. The ID lands in the context under RequestIDKey and is echoed on
// the response so callers can quote it when reporting a problem.
//
// Install it ahead of the logging middleware so every access log line carries
// the ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxInboundIDLength {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
