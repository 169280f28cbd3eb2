// Package requestid tags every request with a correlation ID so the log
// lines of one webhook delivery can be stitched together.
package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the ID between the gateway and this service. An inbound
// value is adopted and echoed back so gateway retries stay correlated.
const Header = "X-Request-ID"

const ctxKey = "requestID"

// Middleware adopts the caller's request ID or mints a fresh one, storing
// it on the context and mirroring it on the response.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(ctxKey, id)
		c.Writer.Header().Set(Header, id)

		c.Next()
	}
}

// Value reads the request ID set by Middleware, or "" outside of one.
func Value(c *gin.Context) string {
	if v, ok := c.Get(ctxKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
