package middleware

import (
	"crypto/rsa"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gymmaster/internal/api/response"
	jwtutil "gymmaster/pkg/jwt"
)

const (
	claimsContextKey  = "claims"
	accessTokenCookie = "access_token"
)

type Claims = jwtutil.Claims

var errNoCredentials = errors.New("no credentials")

// JWTAuth verifies the access token signature and expiry. Claims carry the
// role, so no user lookup happens per request; deactivated users lose access
// when their access token expires.
func JWTAuth(publicKey *rsa.PublicKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetClaims(c); ok {
			c.Next()
			return
		}

		claims, err := authenticate(c, publicKey)
		switch {
		case err == nil:
			c.Set(claimsContextKey, claims)
			c.Next()
		case errors.Is(err, jwt.ErrTokenExpired):
			abortWith(c, http.StatusUnauthorized, response.ErrTokenExpired, "token expired")
		default:
			abortWith(c, http.StatusUnauthorized, response.ErrUnauthorized, "unauthorized")
		}
	}
}

func authenticate(c *gin.Context, publicKey *rsa.PublicKey) (*Claims, error) {
	raw := TokenFromRequest(c)
	if raw == "" || publicKey == nil {
		return nil, errNoCredentials
	}
	return jwtutil.ParseAccessToken(raw, publicKey)
}

// RequireRole admits callers whose role matches one of roles, ignoring case.
// It must run after JWTAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[strings.ToUpper(strings.TrimSpace(role))] = struct{}{}
	}

	return func(c *gin.Context) {
		if len(allowed) == 0 {
			c.Next()
			return
		}
		claims, ok := GetClaims(c)
		if !ok {
			abortWith(c, http.StatusUnauthorized, response.ErrUnauthorized, "unauthorized")
			return
		}
		if _, ok := allowed[strings.ToUpper(claims.Role)]; !ok {
			abortWith(c, http.StatusForbidden, response.ErrForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

func GetClaims(c *gin.Context) (*Claims, bool) {
	claims, ok := c.Value(claimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// CurrentUserID returns the authenticated subject, if any.
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	claims, ok := GetClaims(c)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// TokenFromRequest prefers the Authorization header over the cookie set at login.
func TokenFromRequest(c *gin.Context) string {
	if token := bearerTokenFromRequest(c.GetHeader("Authorization")); token != "" {
		return token
	}
	cookie, err := c.Cookie(accessTokenCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie)
}

func abortWith(c *gin.Context, status int, code int, message string) {
	response.Fail(c, status, code, message)
	c.Abort()
}
