package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gymmaster/internal/api/middleware"
	"gymmaster/internal/api/response"
	"gymmaster/internal/api/sanitize"
	"gymmaster/internal/model"
	"gymmaster/internal/service"
)

type MembershipHandler struct {
	membershipService *service.MembershipService
	memberService     *service.MemberService
}

type membershipTypeRequest struct {
	Name               *string `json:"name"`
	Description        *string `json:"description"`
	DurationDays       *int    `json:"duration_days"`
	PriceCents         *int64  `json:"price_cents"`
	MaxClassesPerMonth *int    `json:"max_classes_per_month"`
	IsActive           *bool   `json:"is_active"`
}

func (r membershipTypeRequest) toService() service.MembershipTypeRequest {
	return service.MembershipTypeRequest{
		Name:               sanitize.PlainPtr(r.Name),
		Description:        sanitize.PlainPtr(r.Description),
		DurationDays:       r.DurationDays,
		PriceCents:         r.PriceCents,
		MaxClassesPerMonth: r.MaxClassesPerMonth,
		IsActive:           r.IsActive,
	}
}

type createMembershipRequest struct {
	MemberID         uuid.UUID  `json:"member_id" binding:"required"`
	MembershipTypeID uuid.UUID  `json:"membership_type_id" binding:"required"`
	BranchID         *uuid.UUID `json:"branch_id"`
	StartDate        *string    `json:"start_date"`
	PriceCents       *int64     `json:"price_cents"`
}

type membershipStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func NewMembershipHandler(membershipService *service.MembershipService, memberService *service.MemberService) *MembershipHandler {
	return &MembershipHandler{membershipService: membershipService, memberService: memberService}
}

func RegisterMembershipRoutes(
	group *gin.RouterGroup,
	membershipService *service.MembershipService,
	memberService *service.MemberService,
	opts RouteOptions,
) {
	handler := NewMembershipHandler(membershipService, memberService)

	types := group.Group("/membership-types")
	types.Use(opts.auth())
	types.GET("", handler.ListTypes)
	types.GET("/:id", handler.GetType)
	types.POST("", adminOnly(), opts.audit("MembershipType"), handler.CreateType)
	types.PUT("/:id", adminOnly(), opts.audit("MembershipType"), handler.UpdateType)
	types.DELETE("/:id", adminOnly(), opts.audit("MembershipType"), handler.DeleteType)

	memberships := group.Group("/memberships")
	memberships.Use(opts.auth())
	memberships.POST("", staffOnly(), opts.audit("Membership"), handler.Create)
	memberships.GET("", staffOnly(), handler.List)
	memberships.GET("/:id", handler.GetByID)
	memberships.PATCH("/:id/status", staffOnly(), opts.audit("Membership"), handler.ChangeStatus)
}

func (h *MembershipHandler) CreateType(c *gin.Context) {
	var req membershipTypeRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.membershipService.CreateType(c.Request.Context(), req.toService())
	if err != nil {
		handleMembershipServiceError(c, err)
		return
	}
	response.Created(c, item)
}

func (h *MembershipHandler) ListTypes(c *gin.Context) {
	page, pageSize := pageParams(c)
	active, ok := boolQuery(c, "is_active")
	if !ok {
		return
	}

	items, total, err := h.membershipService.ListTypes(c.Request.Context(), active, page, pageSize)
	if err != nil {
		handleMembershipServiceError(c, err)
		return
	}
	response.Paginated(c, items, page, pageSize, total)
}

func (h *MembershipHandler) GetType(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	item, err := h.membershipService.GetType(c.Request.Context(), id)
	if err != nil {
		handleMembershipServiceError(c, err)
		return
	}
	response.Success(c, item)
}

func (h *MembershipHandler) UpdateType(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req membershipTypeRequest
	if !bindJSON(c, &req) {
		return
	}

	item, before, err := h.membershipService.UpdateType(c.Request.Context(), id, req.toService())
	if err != nil {
		handleMembershipServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, before)
	response.Success(c, item)
}

func (h *MembershipHandler) DeleteType(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	before, err := h.membershipService.DeactivateType(c.Request.Context(), id)
	if err != nil {
		handleMembershipServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, before)
	response.Success(c, gin.H{"id": id, "is_active": false})
}

func (h *MembershipHandler) Create(c *gin.Context) {
	var req createMembershipRequest
	if !bindJSON(c, &req) {
		return
	}
	start, err := parseOptionalDate(req.StartDate)
	if err != nil {
		badRequest(c, "invalid start_date")
		return
	}

	item, err := h.membershipService.Create(c.Request.Context(), service.CreateMembershipRequest{
		MemberID:         req.MemberID,
		MembershipTypeID: req.MembershipTypeID,
		BranchID:         req.BranchID,
		StartDate:        start,
		PriceCents:       req.PriceCents,
	})
	if err != nil {
		handleMembershipServiceError(c, err)
		return
	}
	response.Created(c, item)
}

func (h *MembershipHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)
	memberID, ok := uuidQuery(c, "member_id")
	if !ok {
		return
	}

	var status *model.MembershipStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		value := model.MembershipStatus(strings.ToUpper(raw))
		if !value.Valid() {
			badRequest(c, "invalid status")
			return
		}
		status = &value
	}

	items, total, err := h.membershipService.List(c.Request.Context(), memberID, status, page, pageSize)
	if err != nil {
		handleMembershipServiceError(c, err)
		return
	}
	response.Paginated(c, items, page, pageSize, total)
}

func (h *MembershipHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	item, err := h.membershipService.GetByID(c.Request.Context(), id)
	if err != nil {
		handleMembershipServiceError(c, err)
		return
	}
	if !authorizeMemberAccess(c, h.memberService, item.MemberID) {
		return
	}
	response.Success(c, item)
}

func (h *MembershipHandler) ChangeStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req membershipStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	item, before, err := h.membershipService.ChangeStatus(
		c.Request.Context(),
		id,
		model.MembershipStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
	)
	if err != nil {
		handleMembershipServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, gin.H{"status": before.Status})
	response.Success(c, item)
}

func handleMembershipServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMembershipNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrMembershipNotFound, "membership not found")
	case errors.Is(err, service.ErrMembershipTypeNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrMembershipNotFound, "membership type not found")
	case errors.Is(err, service.ErrMemberNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrMemberNotFound, "member not found")
	case errors.Is(err, service.ErrBranchNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrBranchNotFound, "branch not found")
	case errors.Is(err, service.ErrActiveMembershipExists):
		response.Fail(c, http.StatusConflict, response.ErrActiveMembershipExists, err.Error())
	case errors.Is(err, service.ErrMembershipTypeNameTaken):
		response.Fail(c, http.StatusConflict, response.ErrNameTaken, err.Error())
	case errors.Is(err, service.ErrMembershipTypeInactive):
		response.Fail(c, http.StatusBadRequest, response.ErrMembershipTypeInactive, err.Error())
	case errors.Is(err, service.ErrInvalidStatusTransition):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidTransition, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		badRequest(c, err.Error())
	default:
		internalError(c, err)
	}
}
