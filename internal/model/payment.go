package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodCard     PaymentMethod = "CARD"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

type Payment struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	MemberID     uuid.UUID     `db:"member_id" json:"member_id"`
	MembershipID *uuid.UUID    `db:"membership_id" json:"membership_id,omitempty"`
	AmountCents  int64         `db:"amount_cents" json:"amount_cents"`
	Currency     string        `db:"currency" json:"currency"`
	Method       PaymentMethod `db:"method" json:"method"`
	Status       PaymentStatus `db:"status" json:"status"`
	Reference    *string       `db:"reference" json:"reference,omitempty"`
	ExternalID   *string       `db:"external_id" json:"external_id,omitempty"`
	Notes        *string       `db:"notes" json:"notes,omitempty"`
	PaidAt       *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}
