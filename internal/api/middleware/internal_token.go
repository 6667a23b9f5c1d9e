package middleware

import (
	"crypto/subtle"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"

	"gymmaster/internal/api/response"
)

// InternalTokenAuth guards operator endpoints such as /internal/metrics.
// Scrapes from loopback skip the token; everyone else must send it in
// X-Internal-Token or as a bearer token. An empty configured token locks the
// group to loopback only.
func InternalTokenAuth(token string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(token))

	return func(c *gin.Context) {
		if fromLoopback(c) {
			c.Next()
			return
		}

		provided := []byte(internalTokenFromRequest(c))
		if len(expected) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
			response.Fail(c, 401, response.ErrUnauthorized, "unauthorized")
			c.Abort()
			return
		}
		c.Next()
	}
}

func internalTokenFromRequest(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader("X-Internal-Token")); token != "" {
		return token
	}
	return bearerTokenFromRequest(c.GetHeader("Authorization"))
}

func bearerTokenFromRequest(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func fromLoopback(c *gin.Context) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(c.ClientIP()))
	return err == nil && addr.IsLoopback()
}
