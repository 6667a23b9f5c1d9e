package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gymmaster/internal/api/middleware"
	"gymmaster/internal/api/response"
	"gymmaster/internal/api/sanitize"
	"gymmaster/internal/service"
)

type MemberHandler struct {
	memberService *service.MemberService
}

type createMemberRequest struct {
	Email            string  `json:"email" binding:"required"`
	Password         string  `json:"password"`
	FirstName        string  `json:"first_name" binding:"required"`
	LastName         string  `json:"last_name" binding:"required"`
	Phone            *string `json:"phone"`
	DateOfBirth      *string `json:"date_of_birth"`
	EmergencyContact *string `json:"emergency_contact"`
}

type updateMemberRequest struct {
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	Phone            *string `json:"phone"`
	DateOfBirth      *string `json:"date_of_birth"`
	EmergencyContact *string `json:"emergency_contact"`
	IsActive         *bool   `json:"is_active"`
}

func NewMemberHandler(memberService *service.MemberService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

func RegisterMemberRoutes(group *gin.RouterGroup, memberService *service.MemberService, opts RouteOptions) {
	handler := NewMemberHandler(memberService)
	members := group.Group("/members")
	members.Use(opts.auth())

	members.GET("/me", handler.Me)
	members.POST("/me/qr", opts.audit("Member"), handler.RegenerateMyQR)

	members.POST("", staffOnly(), opts.audit("Member"), handler.Create)
	members.GET("", staffOnly(), handler.List)
	members.GET("/:id", handler.GetByID)
	members.PUT("/:id", staffOnly(), opts.audit("Member"), handler.Update)
	members.DELETE("/:id", adminOnly(), opts.audit("Member"), handler.Delete)
	members.POST("/:id/qr", staffOnly(), opts.audit("Member"), handler.RegenerateQR)
	members.GET("/:id/memberships", handler.Memberships)
}

func (h *MemberHandler) Create(c *gin.Context) {
	var req createMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	dob, err := parseOptionalDate(req.DateOfBirth)
	if err != nil {
		badRequest(c, "invalid date_of_birth")
		return
	}

	member, err := h.memberService.Create(c.Request.Context(), service.CreateMemberRequest{
		Email:            req.Email,
		Password:         req.Password,
		FirstName:        sanitize.Plain(req.FirstName),
		LastName:         sanitize.Plain(req.LastName),
		Phone:            sanitize.PlainPtr(req.Phone),
		DateOfBirth:      dob,
		EmergencyContact: sanitize.PlainPtr(req.EmergencyContact),
	})
	if err != nil {
		handleMemberServiceError(c, err)
		return
	}
	response.Created(c, member)
}

func (h *MemberHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)
	active, ok := boolQuery(c, "is_active")
	if !ok {
		return
	}

	members, total, err := h.memberService.List(c.Request.Context(), active, c.Query("keyword"), page, pageSize)
	if err != nil {
		handleMemberServiceError(c, err)
		return
	}
	response.Paginated(c, members, page, pageSize, total)
}

func (h *MemberHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok || !h.authorizeMember(c, id) {
		return
	}

	member, err := h.memberService.GetByID(c.Request.Context(), id)
	if err != nil {
		handleMemberServiceError(c, err)
		return
	}
	response.Success(c, member)
}

func (h *MemberHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req updateMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	dob, err := parseOptionalDate(req.DateOfBirth)
	if err != nil {
		badRequest(c, "invalid date_of_birth")
		return
	}

	before, err := h.memberService.GetByID(c.Request.Context(), id)
	if err != nil {
		handleMemberServiceError(c, err)
		return
	}

	member, err := h.memberService.Update(c.Request.Context(), id, service.UpdateMemberRequest{
		FirstName:        sanitize.PlainPtr(req.FirstName),
		LastName:         sanitize.PlainPtr(req.LastName),
		Phone:            req.Phone,
		DateOfBirth:      dob,
		EmergencyContact: req.EmergencyContact,
		IsActive:         req.IsActive,
	})
	if err != nil {
		handleMemberServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, before)
	response.Success(c, member)
}

// Delete deactivates; visits and payments keep pointing at the member.
func (h *MemberHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	before, err := h.memberService.GetByID(c.Request.Context(), id)
	if err != nil {
		handleMemberServiceError(c, err)
		return
	}
	if err := h.memberService.Deactivate(c.Request.Context(), id); err != nil {
		handleMemberServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, before)
	response.Success(c, gin.H{"id": id, "is_active": false})
}

func (h *MemberHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	member, err := h.memberService.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		handleMemberServiceError(c, err)
		return
	}
	response.Success(c, member)
}

func (h *MemberHandler) RegenerateMyQR(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	member, err := h.memberService.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		handleMemberServiceError(c, err)
		return
	}
	h.regenerate(c, member.ID)
}

func (h *MemberHandler) RegenerateQR(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.regenerate(c, id)
}

func (h *MemberHandler) regenerate(c *gin.Context, memberID uuid.UUID) {
	member, err := h.memberService.RegenerateQR(c.Request.Context(), memberID)
	if err != nil {
		handleMemberServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"id":             member.ID,
		"qr_code":        member.QRCode,
		"qr_code_expiry": member.QRCodeExpiry,
	})
}

func (h *MemberHandler) Memberships(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok || !h.authorizeMember(c, id) {
		return
	}
	page, pageSize := pageParams(c)

	items, total, err := h.memberService.Memberships(c.Request.Context(), id, page, pageSize)
	if err != nil {
		handleMemberServiceError(c, err)
		return
	}
	response.Paginated(c, items, page, pageSize, total)
}

// authorizeMember lets staff through and limits everyone else to their own profile.
func (h *MemberHandler) authorizeMember(c *gin.Context, memberID uuid.UUID) bool {
	return authorizeMemberAccess(c, h.memberService, memberID)
}

func authorizeMemberAccess(c *gin.Context, memberService *service.MemberService, memberID uuid.UUID) bool {
	if isStaff(c) {
		return true
	}
	userID, ok := currentUserID(c)
	if !ok {
		return false
	}
	own, err := memberService.GetByUserID(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, service.ErrMemberNotFound) {
		internalError(c, err)
		return false
	}
	if own == nil || own.ID != memberID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden, "forbidden")
		return false
	}
	return true
}

func handleMemberServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMemberNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrMemberNotFound, "member not found")
	case errors.Is(err, service.ErrEmailInUse):
		response.Fail(c, http.StatusConflict, response.ErrEmailInUse, err.Error())
	case errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidInput):
		badRequest(c, err.Error())
	default:
		internalError(c, err)
	}
}
