package model

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditActionCreate   AuditAction = "CREATE"
	AuditActionUpdate   AuditAction = "UPDATE"
	AuditActionDelete   AuditAction = "DELETE"
	AuditActionLogin    AuditAction = "LOGIN"
	AuditActionLogout   AuditAction = "LOGOUT"
	AuditActionRegister AuditAction = "REGISTER"
	AuditActionCheckIn  AuditAction = "CHECK_IN"
	AuditActionCheckOut AuditAction = "CHECK_OUT"
)

// AuditLog rows are append-only; only the retention sweep removes them.
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	UserID    *uuid.UUID             `db:"user_id" json:"user_id,omitempty"`
	Action    AuditAction            `db:"action" json:"action"`
	Entity    string                 `db:"entity" json:"entity"`
	EntityID  *string                `db:"entity_id" json:"entity_id,omitempty"`
	OldValues map[string]interface{} `db:"old_values" json:"old_values,omitempty"`
	NewValues map[string]interface{} `db:"new_values" json:"new_values,omitempty"`
	IPAddress *string                `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent *string                `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}
