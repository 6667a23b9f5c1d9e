package model

import (
	"time"

	"github.com/google/uuid"
)

// CheckIn is an "open visit" while CheckOutAt is nil.
type CheckIn struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	MemberID   uuid.UUID  `db:"member_id" json:"member_id"`
	BranchID   uuid.UUID  `db:"branch_id" json:"branch_id"`
	CheckInAt  time.Time  `db:"check_in_at" json:"check_in_at"`
	CheckOutAt *time.Time `db:"check_out_at" json:"check_out_at,omitempty"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`

	MemberName string `db:"-" json:"member_name,omitempty"`
	BranchName string `db:"-" json:"branch_name,omitempty"`
}

func (c *CheckIn) IsOpen() bool {
	return c != nil && c.CheckOutAt == nil
}

// Duration is zero for open visits.
func (c *CheckIn) Duration() time.Duration {
	if c == nil || c.CheckOutAt == nil {
		return 0
	}
	return c.CheckOutAt.Sub(c.CheckInAt)
}
