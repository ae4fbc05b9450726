package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// OriginAllowed reports whether a browser Origin may open a socket. An empty
// allow-list or "*" admits everything; requests without an Origin header
// (non-browser clients) are always admitted.
func OriginAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

// Origin rejects cross-origin WebSocket handshakes outside the allow-list.
// It never calls c.Next, so it can sit in the MiddlewareManager chain.
func Origin(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet && c.Request.URL.Path == "/ws" {
			if !OriginAllowed(allowed, c.GetHeader("Origin")) {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}
	}
}
