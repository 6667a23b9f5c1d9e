package v1

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gymmaster/internal/api/middleware"
	"gymmaster/internal/api/response"
	"gymmaster/internal/api/sanitize"
	"gymmaster/internal/model"
	"gymmaster/internal/service"
)

const defaultAutoCloseHours = 24

type CheckInHandler struct {
	checkInService *service.CheckInService
	memberService  *service.MemberService
	autoCloseHours int
}

type checkInRequest struct {
	QRCode   string    `json:"qr_code" binding:"required"`
	BranchID uuid.UUID `json:"branch_id" binding:"required"`
}

type adminCheckInRequest struct {
	MemberID uuid.UUID `json:"member_id" binding:"required"`
	BranchID uuid.UUID `json:"branch_id" binding:"required"`
	Notes    *string   `json:"notes"`
}

type adminCheckOutRequest struct {
	MemberID uuid.UUID `json:"member_id" binding:"required"`
	Notes    *string   `json:"notes"`
}

type checkOutRequest struct {
	Notes *string `json:"notes"`
}

func NewCheckInHandler(checkInService *service.CheckInService, memberService *service.MemberService, autoCloseHours int) *CheckInHandler {
	if autoCloseHours <= 0 {
		autoCloseHours = defaultAutoCloseHours
	}
	return &CheckInHandler{
		checkInService: checkInService,
		memberService:  memberService,
		autoCloseHours: autoCloseHours,
	}
}

func RegisterCheckInRoutes(
	group *gin.RouterGroup,
	checkInService *service.CheckInService,
	memberService *service.MemberService,
	autoCloseHours int,
	opts RouteOptions,
) {
	handler := NewCheckInHandler(checkInService, memberService, autoCloseHours)
	checkins := group.Group("/checkins")
	checkins.Use(opts.auth())

	checkins.POST("",
		middleware.RateLimit(opts.RateStore, "user_id", opts.CheckInPerMinute, time.Minute),
		opts.auditAs("CheckIn", model.AuditActionCheckIn),
		handler.CheckIn,
	)
	checkins.PUT("/:id/checkout", opts.auditAs("CheckIn", model.AuditActionCheckOut), handler.CheckOut)

	checkins.POST("/admin/checkin", staffOnly(), opts.auditAs("CheckIn", model.AuditActionCheckIn), handler.AdminCheckIn)
	checkins.POST("/admin/checkout", staffOnly(), opts.auditAs("CheckIn", model.AuditActionCheckOut), handler.AdminCheckOut)
	checkins.POST("/auto-close", adminOnly(), opts.auditAs("CheckIn", model.AuditActionUpdate), handler.AutoClose)

	checkins.GET("/active", staffOnly(), handler.Active)
	checkins.GET("/stats", staffOnly(), handler.Stats)
	checkins.GET("/me", handler.MyHistory)
	checkins.GET("", staffOnly(), handler.List)
	checkins.GET("/:id", handler.GetByID)
}

// CheckIn opens a visit from a scanned QR code.
func (h *CheckInHandler) CheckIn(c *gin.Context) {
	var req checkInRequest
	if !bindJSON(c, &req) {
		return
	}

	checkIn, err := h.checkInService.CheckIn(c.Request.Context(), req.QRCode, req.BranchID)
	if err != nil {
		handleCheckInServiceError(c, err)
		return
	}
	response.Created(c, checkIn)
}

func (h *CheckInHandler) CheckOut(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req checkOutRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	if !isStaff(c) {
		current, err := h.checkInService.GetByID(c.Request.Context(), id)
		if err != nil {
			handleCheckInServiceError(c, err)
			return
		}
		if !authorizeMemberAccess(c, h.memberService, current.MemberID) {
			return
		}
	}

	checkIn, err := h.checkInService.CheckOut(c.Request.Context(), id, sanitize.PlainPtr(req.Notes))
	if err != nil {
		handleCheckInServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, gin.H{"check_out_at": nil})
	response.Success(c, checkIn)
}

func (h *CheckInHandler) AdminCheckIn(c *gin.Context) {
	var req adminCheckInRequest
	if !bindJSON(c, &req) {
		return
	}

	checkIn, err := h.checkInService.AdminCheckIn(c.Request.Context(), req.MemberID, req.BranchID, sanitize.PlainPtr(req.Notes))
	if err != nil {
		handleCheckInServiceError(c, err)
		return
	}
	response.Created(c, checkIn)
}

func (h *CheckInHandler) AdminCheckOut(c *gin.Context) {
	var req adminCheckOutRequest
	if !bindJSON(c, &req) {
		return
	}

	checkIn, err := h.checkInService.AdminCheckOut(c.Request.Context(), req.MemberID, sanitize.PlainPtr(req.Notes))
	if err != nil {
		handleCheckInServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, gin.H{"check_out_at": nil})
	response.Success(c, checkIn)
}

// AutoClose runs the stale-visit sweep on demand; hours defaults to the configured threshold.
func (h *CheckInHandler) AutoClose(c *gin.Context) {
	hours := h.autoCloseHours
	if raw := strings.TrimSpace(c.Query("hours")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			badRequest(c, "hours must be a positive integer")
			return
		}
		hours = value
	}

	closed, err := h.checkInService.AutoClose(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		handleCheckInServiceError(c, err)
		return
	}

	middleware.SetAuditEntityID(c, "auto-close")
	response.Success(c, gin.H{"closed": closed, "hours": hours})
}

func (h *CheckInHandler) Active(c *gin.Context) {
	page, pageSize := pageParams(c)
	branchID, ok := uuidQuery(c, "branch_id")
	if !ok {
		return
	}

	items, total, err := h.checkInService.Active(c.Request.Context(), branchID, page, pageSize)
	if err != nil {
		handleCheckInServiceError(c, err)
		return
	}
	response.Paginated(c, items, page, pageSize, total)
}

func (h *CheckInHandler) Stats(c *gin.Context) {
	from, ok := timeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to")
	if !ok {
		return
	}

	stats, err := h.checkInService.Stats(c.Request.Context(), from, to)
	if err != nil {
		handleCheckInServiceError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *CheckInHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)

	var query service.CheckInQuery
	var ok bool
	if query.MemberID, ok = uuidQuery(c, "member_id"); !ok {
		return
	}
	if query.BranchID, ok = uuidQuery(c, "branch_id"); !ok {
		return
	}
	if query.From, ok = timeQuery(c, "from"); !ok {
		return
	}
	if query.To, ok = timeQuery(c, "to"); !ok {
		return
	}

	items, total, err := h.checkInService.List(c.Request.Context(), query, page, pageSize)
	if err != nil {
		handleCheckInServiceError(c, err)
		return
	}
	response.Paginated(c, items, page, pageSize, total)
}

func (h *CheckInHandler) MyHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	items, total, err := h.checkInService.MemberHistory(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		handleCheckInServiceError(c, err)
		return
	}
	response.Paginated(c, items, page, pageSize, total)
}

func (h *CheckInHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	checkIn, err := h.checkInService.GetByID(c.Request.Context(), id)
	if err != nil {
		handleCheckInServiceError(c, err)
		return
	}
	if !authorizeMemberAccess(c, h.memberService, checkIn.MemberID) {
		return
	}
	response.Success(c, checkIn)
}

func handleCheckInServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		response.Fail(c, http.StatusNotFound, response.ErrInvalidToken, err.Error())
	case errors.Is(err, service.ErrInactiveAccount):
		response.Fail(c, http.StatusForbidden, response.ErrInactiveAccount, err.Error())
	case errors.Is(err, service.ErrTokenExpired):
		response.Fail(c, http.StatusBadRequest, response.ErrQRTokenExpired, err.Error())
	case errors.Is(err, service.ErrNoActiveMembership):
		response.Fail(c, http.StatusForbidden, response.ErrNoActiveMembership, err.Error())
	case errors.Is(err, service.ErrVisitAlreadyOpen):
		response.Fail(c, http.StatusBadRequest, response.ErrVisitAlreadyOpen, err.Error())
	case errors.Is(err, service.ErrBranchUnavailable):
		response.Fail(c, http.StatusNotFound, response.ErrBranchUnavailable, err.Error())
	case errors.Is(err, service.ErrCheckInNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrCheckInNotFound, err.Error())
	case errors.Is(err, service.ErrMemberNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrMemberNotFound, "member not found")
	case errors.Is(err, service.ErrAlreadyClosed):
		response.Fail(c, http.StatusBadRequest, response.ErrAlreadyClosed, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		badRequest(c, err.Error())
	default:
		internalError(c, err)
	}
}
