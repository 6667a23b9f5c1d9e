package v1

import (
	"crypto/rsa"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gymmaster/internal/api/middleware"
	"gymmaster/internal/api/response"
	"gymmaster/internal/audit"
	"gymmaster/internal/model"
)

const dateLayout = "2006-01-02"

var (
	roleAdmin    = string(model.UserRoleAdmin)
	roleEmployee = string(model.UserRoleEmployee)
	roleTrainer  = string(model.UserRoleTrainer)
)

// RouteOptions carries the cross-cutting pieces every route group needs.
type RouteOptions struct {
	PublicKey        *rsa.PublicKey
	Recorder         *audit.Recorder
	RateStore        middleware.RateLimitStore
	LoginPerMinute   int
	CheckInPerMinute int
	Logger           *zap.Logger
}

func (o RouteOptions) auth() gin.HandlerFunc {
	return middleware.JWTAuth(o.PublicKey)
}

func (o RouteOptions) audit(entity string) gin.HandlerFunc {
	return middleware.Audit(o.Recorder, audit.Route{Entity: entity})
}

func (o RouteOptions) auditAs(entity string, action model.AuditAction) gin.HandlerFunc {
	return middleware.Audit(o.Recorder, audit.Route{Entity: entity, Action: action})
}

func (o RouteOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func staffOnly() gin.HandlerFunc {
	return middleware.RequireRole(roleAdmin, roleEmployee)
}

func adminOnly() gin.HandlerFunc {
	return middleware.RequireRole(roleAdmin)
}

func isStaff(c *gin.Context) bool {
	claims, ok := middleware.GetClaims(c)
	return ok && model.UserRole(strings.ToUpper(claims.Role)).IsStaff()
}

func badRequest(c *gin.Context, message string) {
	response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, message)
}

// internalError keeps the cause out of the response; the request logger reports it.
func internalError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "internal error")
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return false
	}
	return true
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return id, true
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	return parseIntOrDefault(c.Query("page"), 1), parseIntOrDefault(c.Query("page_size"), 20)
}

func parseIntOrDefault(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return def
	}
	return value
}

func uuidQuery(c *gin.Context, key string) (*uuid.UUID, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, "invalid "+key)
		return nil, false
	}
	return &id, true
}

func boolQuery(c *gin.Context, key string) (*bool, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		badRequest(c, "invalid "+key)
		return nil, false
	}
	return &value, true
}

// timeQuery accepts RFC 3339 or a bare date, read as midnight UTC.
func timeQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	value, err := parseTime(raw)
	if err != nil {
		badRequest(c, "invalid "+key)
		return nil, false
	}
	return &value, true
}

func parseTime(raw string) (time.Time, error) {
	if value, err := time.Parse(time.RFC3339, raw); err == nil {
		return value.UTC(), nil
	}
	value, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return value.UTC(), nil
}

func parseOptionalDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value, err := parseTime(strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &value, nil
}
