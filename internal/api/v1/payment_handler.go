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

type PaymentHandler struct {
	paymentService *service.PaymentService
}

type createPaymentRequest struct {
	MemberID     uuid.UUID  `json:"member_id" binding:"required"`
	MembershipID *uuid.UUID `json:"membership_id"`
	AmountCents  int64      `json:"amount_cents" binding:"required"`
	Currency     string     `json:"currency"`
	Method       string     `json:"method" binding:"required"`
	Reference    *string    `json:"reference"`
	Notes        *string    `json:"notes"`
}

type refundRequest struct {
	Notes *string `json:"notes"`
}

func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

func RegisterPaymentRoutes(group *gin.RouterGroup, paymentService *service.PaymentService, opts RouteOptions) {
	handler := NewPaymentHandler(paymentService)
	payments := group.Group("/payments")
	payments.Use(opts.auth(), staffOnly())

	payments.POST("", opts.audit("Payment"), handler.Create)
	payments.GET("", handler.List)
	payments.GET("/:id", handler.GetByID)
	payments.POST("/:id/confirm", opts.audit("Payment"), handler.Confirm)
	payments.POST("/:id/refund", adminOnly(), opts.audit("Payment"), handler.Refund)
}

// Create answers with the payment and, for gateway card payments, the client secret.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req createPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.paymentService.Create(c.Request.Context(), service.CreatePaymentRequest{
		MemberID:     req.MemberID,
		MembershipID: req.MembershipID,
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		Method:       model.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.Method))),
		Reference:    sanitize.PlainPtr(req.Reference),
		Notes:        sanitize.PlainPtr(req.Notes),
	})
	if err != nil {
		handlePaymentServiceError(c, err)
		return
	}

	middleware.SetAuditEntityID(c, result.Payment.ID.String())
	response.Created(c, gin.H{
		"id":            result.Payment.ID,
		"payment":       result.Payment,
		"client_secret": result.ClientSecret,
	})
}

func (h *PaymentHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)

	var query service.PaymentQuery
	var ok bool
	if query.MemberID, ok = uuidQuery(c, "member_id"); !ok {
		return
	}
	if query.From, ok = timeQuery(c, "from"); !ok {
		return
	}
	if query.To, ok = timeQuery(c, "to"); !ok {
		return
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := model.PaymentStatus(strings.ToUpper(raw))
		query.Status = &status
	}

	items, total, err := h.paymentService.List(c.Request.Context(), query, page, pageSize)
	if err != nil {
		handlePaymentServiceError(c, err)
		return
	}
	response.Paginated(c, items, page, pageSize, total)
}

func (h *PaymentHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	payment, err := h.paymentService.GetByID(c.Request.Context(), id)
	if err != nil {
		handlePaymentServiceError(c, err)
		return
	}
	response.Success(c, payment)
}

func (h *PaymentHandler) Confirm(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	payment, err := h.paymentService.Confirm(c.Request.Context(), id)
	if err != nil {
		handlePaymentServiceError(c, err)
		return
	}
	middleware.SetAuditOldValues(c, gin.H{"status": model.PaymentStatusPending})
	response.Success(c, payment)
}

func (h *PaymentHandler) Refund(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req refundRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	payment, before, err := h.paymentService.Refund(c.Request.Context(), id, sanitize.PlainPtr(req.Notes))
	if err != nil {
		handlePaymentServiceError(c, err)
		return
	}

	middleware.SetAuditOldValues(c, gin.H{"status": before.Status, "notes": before.Notes})
	response.Success(c, payment)
}

func handlePaymentServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPaymentNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrPaymentNotFound, "payment not found")
	case errors.Is(err, service.ErrMemberNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrMemberNotFound, "member not found")
	case errors.Is(err, service.ErrMembershipNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrMembershipNotFound, "membership not found")
	case errors.Is(err, service.ErrPaymentNotRefundable), errors.Is(err, service.ErrPaymentNotPending):
		response.Fail(c, http.StatusBadRequest, response.ErrPaymentState, err.Error())
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidMethod),
		errors.Is(err, service.ErrInvalidInput):
		badRequest(c, err.Error())
	case errors.Is(err, service.ErrGatewayNotConfigured):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrGatewayFailure, err.Error())
	case errors.Is(err, service.ErrGatewayFailure):
		_ = c.Error(err)
		response.Fail(c, http.StatusBadGateway, response.ErrGatewayFailure, "payment gateway request failed")
	default:
		internalError(c, err)
	}
}
