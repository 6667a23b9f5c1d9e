package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

var (
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
	ErrGatewayFailure       = errors.New("payment gateway request failed")
)

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
}

// PaymentGateway is the card processor. Amounts are in minor units.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency, paymentID string) (*PaymentIntent, error)
	IntentStatus(ctx context.Context, intentID string) (string, error)
	Refund(ctx context.Context, intentID string, amountCents int64) error
}

type StripeGateway struct {
	api *client.API
}

// NewStripeGateway returns nil for an empty key so callers can treat card payments as offline.
func NewStripeGateway(secretKey string) *StripeGateway {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return nil
	}
	api := &client.API{}
	api.Init(key, nil)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, currency, paymentID string) (*PaymentIntent, error) {
	if g == nil || g.api == nil {
		return nil, ErrGatewayNotConfigured
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("payment_id", paymentID)
	params.SetIdempotencyKey("gym-payment-" + paymentID)

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	return &PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
	}, nil
}

func (g *StripeGateway) IntentStatus(ctx context.Context, intentID string) (string, error) {
	if g == nil || g.api == nil {
		return "", ErrGatewayNotConfigured
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	return string(intent.Status), nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string, amountCents int64) error {
	if g == nil || g.api == nil {
		return ErrGatewayNotConfigured
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(amountCents),
	}
	params.Context = ctx
	params.SetIdempotencyKey("gym-refund-" + intentID)

	if _, err := g.api.Refunds.New(params); err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	return nil
}
