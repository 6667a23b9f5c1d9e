package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gymmaster/internal/api/middleware"
	"gymmaster/internal/api/response"
	"gymmaster/internal/model"
	"gymmaster/internal/service"
)

type UserHandler struct {
	userService *service.UserService
}

type userStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

type userRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func RegisterUserRoutes(group *gin.RouterGroup, userService *service.UserService, opts RouteOptions) {
	handler := NewUserHandler(userService)
	users := group.Group("/users")
	users.Use(opts.auth(), adminOnly())

	users.GET("", handler.List)
	users.GET("/:id", handler.GetByID)
	users.PATCH("/:id/status", opts.audit("User"), handler.SetStatus)
	users.PATCH("/:id/role", opts.audit("User"), handler.SetRole)
}

func (h *UserHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)

	filters := make([]service.UserFilter, 0, 3)
	if role := strings.TrimSpace(c.Query("role")); role != "" {
		filters = append(filters, service.ByRole(model.UserRole(strings.ToUpper(role))))
	}
	active, ok := boolQuery(c, "is_active")
	if !ok {
		return
	}
	if active != nil {
		filters = append(filters, service.ByActive(*active))
	}
	if keyword := strings.TrimSpace(c.Query("keyword")); keyword != "" {
		filters = append(filters, service.ByKeyword(keyword))
	}

	users, total, err := h.userService.List(c.Request.Context(), page, pageSize, filters...)
	if err != nil {
		handleUserServiceError(c, err)
		return
	}

	response.Paginated(c, users, page, pageSize, total)
}

func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), id)
	if err != nil {
		handleUserServiceError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) SetStatus(c *gin.Context) {
	operatorID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req userStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	before, err := h.userService.SetActive(c.Request.Context(), operatorID, id, *req.IsActive)
	if err != nil {
		handleUserServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, gin.H{"is_active": before.IsActive})
	response.Success(c, gin.H{"id": id, "is_active": *req.IsActive})
}

func (h *UserHandler) SetRole(c *gin.Context) {
	operatorID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req userRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	role := model.UserRole(strings.ToUpper(strings.TrimSpace(req.Role)))

	before, err := h.userService.SetRole(c.Request.Context(), operatorID, id, role)
	if err != nil {
		handleUserServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, gin.H{"role": before.Role})
	response.Success(c, gin.H{"id": id, "role": role})
}

func handleUserServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrUserNotFound, "user not found")
	case errors.Is(err, service.ErrSelfDeactivateForbidden), errors.Is(err, service.ErrSelfDemoteForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrSelfChangeRejected, err.Error())
	case errors.Is(err, service.ErrInvalidRole), errors.Is(err, service.ErrInvalidInput):
		badRequest(c, err.Error())
	default:
		internalError(c, err)
	}
}
