package v1

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"gymmaster/internal/api/response"
	"gymmaster/internal/model"
	"gymmaster/internal/service"
)

type AuditHandler struct {
	auditService *service.AuditService
}

func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func RegisterAuditRoutes(group *gin.RouterGroup, auditService *service.AuditService, opts RouteOptions) {
	if auditService == nil {
		return
	}

	handler := NewAuditHandler(auditService)
	audit := group.Group("/audit")
	audit.Use(opts.auth(), adminOnly())
	audit.GET("/logs", handler.List)
	audit.GET("/entity/:entity/:entityId", handler.EntityHistory)
	audit.GET("/stats", handler.Stats)
	audit.DELETE("/cleanup", handler.Cleanup)
}

func (h *AuditHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)

	var filter service.AuditFilter
	var ok bool
	if filter.UserID, ok = uuidQuery(c, "user_id"); !ok {
		return
	}
	if filter.From, ok = timeQuery(c, "from"); !ok {
		return
	}
	if filter.To, ok = timeQuery(c, "to"); !ok {
		return
	}
	if raw := strings.TrimSpace(c.Query("action")); raw != "" {
		action := model.AuditAction(strings.ToUpper(raw))
		filter.Action = &action
	}
	if raw := strings.TrimSpace(c.Query("entity")); raw != "" {
		filter.Entity = &raw
	}
	if raw := strings.TrimSpace(c.Query("entity_id")); raw != "" {
		filter.EntityID = &raw
	}

	items, total, err := h.auditService.List(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		handleAuditServiceError(c, err)
		return
	}
	response.Paginated(c, items, page, pageSize, total)
}

func (h *AuditHandler) EntityHistory(c *gin.Context) {
	page, pageSize := pageParams(c)

	items, total, err := h.auditService.EntityHistory(
		c.Request.Context(),
		c.Param("entity"),
		c.Param("entityId"),
		page,
		pageSize,
	)
	if err != nil {
		handleAuditServiceError(c, err)
		return
	}
	response.Paginated(c, items, page, pageSize, total)
}

func (h *AuditHandler) Stats(c *gin.Context) {
	stats, err := h.auditService.Stats(c.Request.Context(), parseIntOrDefault(c.Query("days"), 0))
	if err != nil {
		handleAuditServiceError(c, err)
		return
	}
	response.Success(c, stats)
}

// Cleanup with no days parameter falls back to the configured retention.
func (h *AuditHandler) Cleanup(c *gin.Context) {
	days := parseIntOrDefault(c.Query("days"), 0)

	deleted, err := h.auditService.Cleanup(c.Request.Context(), days)
	if err != nil {
		handleAuditServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": deleted})
}

func handleAuditServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAuditInput):
		badRequest(c, "invalid request")
	default:
		internalError(c, err)
	}
}
