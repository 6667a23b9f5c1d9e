package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gymmaster/internal/api/middleware"
	"gymmaster/internal/api/response"
	"gymmaster/internal/api/sanitize"
	"gymmaster/internal/service"
)

type BranchHandler struct {
	branchService *service.BranchService
}

type branchRequest struct {
	Name        *string `json:"name"`
	Address     *string `json:"address"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	OpeningTime *string `json:"opening_time"`
	ClosingTime *string `json:"closing_time"`
	IsActive    *bool   `json:"is_active"`
}

func (r branchRequest) toService() service.BranchRequest {
	return service.BranchRequest{
		Name:        sanitize.PlainPtr(r.Name),
		Address:     sanitize.PlainPtr(r.Address),
		Phone:       r.Phone,
		Email:       r.Email,
		OpeningTime: r.OpeningTime,
		ClosingTime: r.ClosingTime,
		IsActive:    r.IsActive,
	}
}

func NewBranchHandler(branchService *service.BranchService) *BranchHandler {
	return &BranchHandler{branchService: branchService}
}

func RegisterBranchRoutes(group *gin.RouterGroup, branchService *service.BranchService, opts RouteOptions) {
	handler := NewBranchHandler(branchService)
	branches := group.Group("/branches")
	branches.Use(opts.auth())

	branches.GET("", handler.List)
	branches.GET("/:id", handler.GetByID)
	branches.POST("", adminOnly(), opts.audit("Branch"), handler.Create)
	branches.PUT("/:id", adminOnly(), opts.audit("Branch"), handler.Update)
	branches.DELETE("/:id", adminOnly(), opts.audit("Branch"), handler.Delete)
}

func (h *BranchHandler) Create(c *gin.Context) {
	var req branchRequest
	if !bindJSON(c, &req) {
		return
	}

	branch, err := h.branchService.Create(c.Request.Context(), req.toService())
	if err != nil {
		handleBranchServiceError(c, err)
		return
	}
	response.Created(c, branch)
}

func (h *BranchHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)
	active, ok := boolQuery(c, "is_active")
	if !ok {
		return
	}

	branches, total, err := h.branchService.List(c.Request.Context(), active, page, pageSize)
	if err != nil {
		handleBranchServiceError(c, err)
		return
	}
	response.Paginated(c, branches, page, pageSize, total)
}

func (h *BranchHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	branch, err := h.branchService.GetByID(c.Request.Context(), id)
	if err != nil {
		handleBranchServiceError(c, err)
		return
	}
	response.Success(c, branch)
}

func (h *BranchHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req branchRequest
	if !bindJSON(c, &req) {
		return
	}

	branch, before, err := h.branchService.Update(c.Request.Context(), id, req.toService())
	if err != nil {
		handleBranchServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, before)
	response.Success(c, branch)
}

func (h *BranchHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	before, err := h.branchService.Deactivate(c.Request.Context(), id)
	if err != nil {
		handleBranchServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, before)
	response.Success(c, gin.H{"id": id, "is_active": false})
}

func handleBranchServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBranchNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrBranchNotFound, "branch not found")
	case errors.Is(err, service.ErrBranchNameTaken):
		response.Fail(c, http.StatusConflict, response.ErrNameTaken, err.Error())
	case errors.Is(err, service.ErrInvalidHours),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidInput):
		badRequest(c, err.Error())
	default:
		internalError(c, err)
	}
}
