package model

import (
	"time"

	"github.com/google/uuid"
)

type Member struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	UserID           uuid.UUID  `db:"user_id" json:"user_id"`
	MembershipNumber string     `db:"membership_number" json:"membership_number"`
	QRCode           string     `db:"qr_code" json:"qr_code,omitempty"`
	QRCodeExpiry     time.Time  `db:"qr_code_expiry" json:"qr_code_expiry"`
	DateOfBirth      *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	EmergencyContact *string    `db:"emergency_contact" json:"emergency_contact,omitempty"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`

	// Joined from users on reads.
	User *User `db:"-" json:"user,omitempty"`
}

func (m *Member) DisplayName() string {
	if m == nil || m.User == nil {
		return ""
	}
	return m.User.FullName()
}

// QRExpired uses a strict comparison: a token is still valid at its expiry instant.
func (m *Member) QRExpired(now time.Time) bool {
	return now.After(m.QRCodeExpiry)
}
