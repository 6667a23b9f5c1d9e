package v1

import (
	"errors"
	"net/http"
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

type ClassHandler struct {
	classService  *service.ClassService
	memberService *service.MemberService
}

type classRequest struct {
	BranchID    *uuid.UUID `json:"branch_id"`
	TrainerID   *uuid.UUID `json:"trainer_id"`
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Capacity    *int       `json:"capacity"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

func (r classRequest) toService() service.ClassRequest {
	return service.ClassRequest{
		BranchID:    r.BranchID,
		TrainerID:   r.TrainerID,
		Name:        sanitize.PlainPtr(r.Name),
		Description: sanitize.PlainPtr(r.Description),
		Capacity:    r.Capacity,
		StartsAt:    r.StartsAt,
		EndsAt:      r.EndsAt,
	}
}

type reserveRequest struct {
	MemberID *uuid.UUID `json:"member_id"`
}

func NewClassHandler(classService *service.ClassService, memberService *service.MemberService) *ClassHandler {
	return &ClassHandler{classService: classService, memberService: memberService}
}

func RegisterClassRoutes(
	group *gin.RouterGroup,
	classService *service.ClassService,
	memberService *service.MemberService,
	opts RouteOptions,
) {
	handler := NewClassHandler(classService, memberService)

	classes := group.Group("/classes")
	classes.Use(opts.auth())
	classes.GET("", handler.List)
	classes.GET("/:id", handler.GetByID)
	classes.POST("", staffOnly(), opts.audit("GymClass"), handler.Create)
	classes.PUT("/:id", staffOnly(), opts.audit("GymClass"), handler.Update)
	classes.DELETE("/:id", staffOnly(), opts.audit("GymClass"), handler.Cancel)
	classes.POST("/:id/reservations", opts.audit("Reservation"), handler.Reserve)
	classes.GET("/:id/reservations",
		middleware.RequireRole(roleAdmin, roleEmployee, roleTrainer),
		handler.Reservations,
	)

	reservations := group.Group("/reservations")
	reservations.Use(opts.auth())
	reservations.GET("/me", handler.MyReservations)
	reservations.DELETE("/:id", opts.audit("Reservation"), handler.CancelReservation)
}

func (h *ClassHandler) Create(c *gin.Context) {
	var req classRequest
	if !bindJSON(c, &req) {
		return
	}

	class, err := h.classService.Create(c.Request.Context(), req.toService())
	if err != nil {
		handleClassServiceError(c, err)
		return
	}
	response.Created(c, class)
}

func (h *ClassHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)

	var query service.ClassQuery
	var ok bool
	if query.BranchID, ok = uuidQuery(c, "branch_id"); !ok {
		return
	}
	if query.TrainerID, ok = uuidQuery(c, "trainer_id"); !ok {
		return
	}
	if query.From, ok = timeQuery(c, "from"); !ok {
		return
	}
	if query.To, ok = timeQuery(c, "to"); !ok {
		return
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := model.ClassStatus(strings.ToUpper(raw))
		query.Status = &status
	}

	classes, total, err := h.classService.List(c.Request.Context(), query, page, pageSize)
	if err != nil {
		handleClassServiceError(c, err)
		return
	}
	response.Paginated(c, classes, page, pageSize, total)
}

func (h *ClassHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	class, err := h.classService.GetByID(c.Request.Context(), id)
	if err != nil {
		handleClassServiceError(c, err)
		return
	}
	response.Success(c, class)
}

func (h *ClassHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req classRequest
	if !bindJSON(c, &req) {
		return
	}

	class, before, err := h.classService.Update(c.Request.Context(), id, req.toService())
	if err != nil {
		handleClassServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, before)
	response.Success(c, class)
}

// Cancel is the DELETE semantics for classes and frees every confirmed seat.
func (h *ClassHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	before, err := h.classService.Cancel(c.Request.Context(), id)
	if err != nil {
		handleClassServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, gin.H{"status": before.Status})
	response.Success(c, gin.H{"id": id, "status": model.ClassStatusCancelled})
}

// Reserve books a seat for the caller. Staff may book on behalf of a member.
func (h *ClassHandler) Reserve(c *gin.Context) {
	classID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req reserveRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	var memberID uuid.UUID
	if isStaff(c) && req.MemberID != nil {
		memberID = *req.MemberID
	} else {
		own, ok := h.ownMember(c)
		if !ok {
			return
		}
		memberID = own.ID
	}

	reservation, err := h.classService.Reserve(c.Request.Context(), classID, memberID)
	if err != nil {
		handleClassServiceError(c, err)
		return
	}
	response.Created(c, reservation)
}

func (h *ClassHandler) Reservations(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	items, err := h.classService.Reservations(c.Request.Context(), id)
	if err != nil {
		handleClassServiceError(c, err)
		return
	}
	response.Success(c, items)
}

func (h *ClassHandler) MyReservations(c *gin.Context) {
	own, ok := h.ownMember(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	items, err := h.classService.MemberReservations(c.Request.Context(), own.ID, page, pageSize)
	if err != nil {
		handleClassServiceError(c, err)
		return
	}
	response.Success(c, items)
}

func (h *ClassHandler) CancelReservation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var ownerID *uuid.UUID
	if !isStaff(c) {
		own, ok := h.ownMember(c)
		if !ok {
			return
		}
		ownerID = &own.ID
	}

	before, err := h.classService.CancelReservation(c.Request.Context(), id, ownerID)
	if err != nil {
		handleClassServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, gin.H{"status": before.Status})
	response.Success(c, gin.H{"id": id, "status": model.ReservationStatusCancelled})
}

func (h *ClassHandler) ownMember(c *gin.Context) (*model.Member, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}
	member, err := h.memberService.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		handleClassServiceError(c, err)
		return nil, false
	}
	return member, true
}

func handleClassServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrClassNotFound, "class not found")
	case errors.Is(err, service.ErrReservationNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrClassNotFound, "reservation not found")
	case errors.Is(err, service.ErrMemberNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrMemberNotFound, "member not found")
	case errors.Is(err, service.ErrBranchUnavailable):
		response.Fail(c, http.StatusNotFound, response.ErrBranchUnavailable, err.Error())
	case errors.Is(err, service.ErrClassFull):
		response.Fail(c, http.StatusConflict, response.ErrClassFull, err.Error())
	case errors.Is(err, service.ErrAlreadyReserved):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyReserved, err.Error())
	case errors.Is(err, service.ErrReservationNotOwned):
		response.Fail(c, http.StatusForbidden, response.ErrReservationDenied, err.Error())
	case errors.Is(err, service.ErrInactiveAccount):
		response.Fail(c, http.StatusForbidden, response.ErrInactiveAccount, err.Error())
	case errors.Is(err, service.ErrNoActiveMembership):
		response.Fail(c, http.StatusForbidden, response.ErrNoActiveMembership, err.Error())
	case errors.Is(err, service.ErrClassNotBookable),
		errors.Is(err, service.ErrClassNotEditable),
		errors.Is(err, service.ErrReservationNotActive):
		response.Fail(c, http.StatusBadRequest, response.ErrClassUnavailable, err.Error())
	case errors.Is(err, service.ErrInvalidSchedule),
		errors.Is(err, service.ErrInvalidTrainer),
		errors.Is(err, service.ErrInvalidInput):
		badRequest(c, err.Error())
	default:
		internalError(c, err)
	}
}
