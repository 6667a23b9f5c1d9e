package model

import (
	"time"

	"github.com/google/uuid"
)

type ClassStatus string

const (
	ClassStatusScheduled ClassStatus = "SCHEDULED"
	ClassStatusCancelled ClassStatus = "CANCELLED"
	ClassStatusCompleted ClassStatus = "COMPLETED"
)

type ReservationStatus string

const (
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusAttended  ReservationStatus = "ATTENDED"
)

type GymClass struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	BranchID    uuid.UUID   `db:"branch_id" json:"branch_id"`
	TrainerID   *uuid.UUID  `db:"trainer_id" json:"trainer_id,omitempty"`
	Name        string      `db:"name" json:"name"`
	Description *string     `db:"description" json:"description,omitempty"`
	Capacity    int         `db:"capacity" json:"capacity"`
	StartsAt    time.Time   `db:"starts_at" json:"starts_at"`
	EndsAt      time.Time   `db:"ends_at" json:"ends_at"`
	Status      ClassStatus `db:"status" json:"status"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`

	Reserved int `db:"-" json:"reserved"`
}

type Reservation struct {
	ID        uuid.UUID         `db:"id" json:"id"`
	ClassID   uuid.UUID         `db:"class_id" json:"class_id"`
	MemberID  uuid.UUID         `db:"member_id" json:"member_id"`
	Status    ReservationStatus `db:"status" json:"status"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}
