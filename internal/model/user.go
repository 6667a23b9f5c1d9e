package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "ADMIN"
	UserRoleEmployee UserRole = "EMPLOYEE"
	UserRoleTrainer  UserRole = "TRAINER"
	UserRoleMember   UserRole = "MEMBER"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleEmployee, UserRoleTrainer, UserRoleMember:
		return true
	default:
		return false
	}
}

// IsStaff reports whether the role may operate the front desk.
func (r UserRole) IsStaff() bool {
	return r == UserRoleAdmin || r == UserRoleEmployee
}

type OTPPurpose string

const (
	OTPPurposeEmailVerification OTPPurpose = "EMAIL_VERIFICATION"
	OTPPurposePasswordReset     OTPPurpose = "PASSWORD_RESET"
)

type User struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	FirstName     string     `db:"first_name" json:"first_name"`
	LastName      string     `db:"last_name" json:"last_name"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	Role          UserRole   `db:"role" json:"role"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	EmailVerified bool       `db:"email_verified" json:"email_verified"`
	LastLoginAt   *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type OTPCode struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	UserID     uuid.UUID  `db:"user_id" json:"user_id"`
	Purpose    OTPPurpose `db:"purpose" json:"purpose"`
	CodeHash   string     `db:"code_hash" json:"-"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	ConsumedAt *time.Time `db:"consumed_at" json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
