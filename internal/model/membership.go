package model

import (
	"time"

	"github.com/google/uuid"
)

type MembershipStatus string

const (
	MembershipStatusActive    MembershipStatus = "ACTIVE"
	MembershipStatusExpired   MembershipStatus = "EXPIRED"
	MembershipStatusSuspended MembershipStatus = "SUSPENDED"
	MembershipStatusCancelled MembershipStatus = "CANCELLED"
)

func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipStatusActive, MembershipStatusExpired, MembershipStatusSuspended, MembershipStatusCancelled:
		return true
	default:
		return false
	}
}

type MembershipType struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Description        *string   `db:"description" json:"description,omitempty"`
	DurationDays       int       `db:"duration_days" json:"duration_days"`
	PriceCents         int64     `db:"price_cents" json:"price_cents"`
	MaxClassesPerMonth *int      `db:"max_classes_per_month" json:"max_classes_per_month,omitempty"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

type Membership struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	MemberID         uuid.UUID        `db:"member_id" json:"member_id"`
	MembershipTypeID uuid.UUID        `db:"membership_type_id" json:"membership_type_id"`
	BranchID         *uuid.UUID       `db:"branch_id" json:"branch_id,omitempty"`
	StartDate        time.Time        `db:"start_date" json:"start_date"`
	EndDate          time.Time        `db:"end_date" json:"end_date"`
	Status           MembershipStatus `db:"status" json:"status"`
	PriceCents       int64            `db:"price_cents" json:"price_cents"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// CoversInstant reports whether the membership entitles entry at t (inclusive bounds).
func (m *Membership) CoversInstant(t time.Time) bool {
	if m == nil || m.Status != MembershipStatusActive {
		return false
	}
	return !t.Before(m.StartDate) && !t.After(m.EndDate)
}
