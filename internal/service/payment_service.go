package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gymmaster/internal/metrics"
	"gymmaster/internal/model"
	"gymmaster/internal/repository"
)

const (
	defaultCurrency       = "USD"
	stripeIntentSucceeded = "succeeded"
	stripeIntentCanceled  = "canceled"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentNotRefundable = errors.New("only completed payments can be refunded")
	ErrPaymentNotPending    = errors.New("payment is not pending")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidMethod        = errors.New("invalid payment method")
)

type CreatePaymentRequest struct {
	MemberID     uuid.UUID
	MembershipID *uuid.UUID
	AmountCents  int64
	Currency     string
	Method       model.PaymentMethod
	Reference    *string
	Notes        *string
}

type PaymentQuery struct {
	MemberID *uuid.UUID
	Status   *model.PaymentStatus
	From     *time.Time
	To       *time.Time
}

// PaymentResult carries the Stripe client secret for PENDING card payments.
type PaymentResult struct {
	Payment      *model.Payment `json:"payment"`
	ClientSecret string         `json:"client_secret,omitempty"`
}

type PaymentService struct {
	paymentRepo    repository.PaymentRepository
	memberRepo     repository.MemberRepository
	membershipRepo repository.MembershipRepository
	gateway        PaymentGateway
	currency       string
	logger         *zap.Logger
	clock          Clock
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	memberRepo repository.MemberRepository,
	membershipRepo repository.MembershipRepository,
	gateway PaymentGateway,
	currency string,
	logger *zap.Logger,
) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = defaultCurrency
	}
	return &PaymentService{
		paymentRepo:    paymentRepo,
		memberRepo:     memberRepo,
		membershipRepo: membershipRepo,
		gateway:        gateway,
		currency:       currency,
		logger:         logger,
	}
}

func (s *PaymentService) WithClock(clock Clock) *PaymentService {
	s.clock = clock
	return s
}

// Create records a payment. Card payments go through the gateway when one is
// configured and stay PENDING until confirmed; everything else completes immediately.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*PaymentResult, error) {
	if req.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if !req.Method.Valid() {
		return nil, ErrInvalidMethod
	}

	if _, err := s.memberRepo.FindByID(ctx, req.MemberID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	if req.MembershipID != nil {
		membership, err := s.membershipRepo.FindByID(ctx, *req.MembershipID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrMembershipNotFound
			}
			return nil, err
		}
		if membership.MemberID != req.MemberID {
			return nil, ErrInvalidInput
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.currency
	}

	now := s.clock.now()
	payment := &model.Payment{
		ID:           uuid.New(),
		MemberID:     req.MemberID,
		MembershipID: req.MembershipID,
		AmountCents:  req.AmountCents,
		Currency:     currency,
		Method:       req.Method,
		Reference:    normalizeStringPointer(req.Reference),
		Notes:        normalizeStringPointer(req.Notes),
	}

	result := &PaymentResult{Payment: payment}
	if req.Method == model.PaymentMethodCard && s.gateway != nil {
		intent, err := s.gateway.CreateIntent(ctx, payment.AmountCents, currency, payment.ID.String())
		if err != nil {
			metrics.IncPayment(string(req.Method), "gateway_error")
			return nil, err
		}
		payment.Status = model.PaymentStatusPending
		payment.ExternalID = strPtr(intent.ID)
		result.ClientSecret = intent.ClientSecret
	} else {
		payment.Status = model.PaymentStatusCompleted
		payment.PaidAt = &now
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	metrics.IncPayment(string(payment.Method), string(payment.Status))
	return result, nil
}

// Confirm settles a PENDING card payment from the gateway's view of the intent.
func (s *PaymentService) Confirm(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	payment, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentStatusPending || payment.ExternalID == nil {
		return nil, ErrPaymentNotPending
	}
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	status, err := s.gateway.IntentStatus(ctx, *payment.ExternalID)
	if err != nil {
		return nil, err
	}

	switch status {
	case stripeIntentSucceeded:
		now := s.clock.now()
		payment.Status = model.PaymentStatusCompleted
		payment.PaidAt = &now
	case stripeIntentCanceled:
		payment.Status = model.PaymentStatusFailed
	default:
		return payment, nil
	}

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(payment.Method), string(payment.Status))
	return payment, nil
}

func (s *PaymentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

func (s *PaymentService) List(ctx context.Context, query PaymentQuery, page, pageSize int) ([]*model.Payment, int64, error) {
	filter := repository.PaymentListFilter{
		MemberID:   query.MemberID,
		Status:     query.Status,
		From:       query.From,
		To:         query.To,
		Pagination: toRepoPagination(page, pageSize),
	}
	items, err := s.paymentRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.paymentRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Refund returns the payment as it was before the refund alongside the updated row.
func (s *PaymentService) Refund(ctx context.Context, id uuid.UUID, notes *string) (*model.Payment, *model.Payment, error) {
	payment, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if payment.Status != model.PaymentStatusCompleted {
		return nil, nil, ErrPaymentNotRefundable
	}
	before := *payment

	if payment.ExternalID != nil {
		if s.gateway == nil {
			return nil, nil, ErrGatewayNotConfigured
		}
		if err := s.gateway.Refund(ctx, *payment.ExternalID, payment.AmountCents); err != nil {
			s.logger.Error("gateway refund failed", zap.String("payment_id", payment.ID.String()), zap.Error(err))
			return nil, nil, err
		}
	}

	payment.Status = model.PaymentStatusRefunded
	if n := normalizeStringPointer(notes); n != nil {
		payment.Notes = n
	}
	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, nil, err
	}

	metrics.IncPayment(string(payment.Method), string(payment.Status))
	return payment, &before, nil
}
