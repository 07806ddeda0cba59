package domain

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// AuditLog records who changed what. Written best-effort, outside the
// primary transaction's critical path.
type AuditLog struct {
	ID         string          `db:"id"`
	UserID     *string         `db:"user_id"`
	Username   *string         `db:"username"`
	Action     AuditAction     `db:"action"`
	EntityType string          `db:"entity_type"`
	EntityID   string          `db:"entity_id"`
	OldValues  json.RawMessage `db:"old_values"`
	NewValues  json.RawMessage `db:"new_values"`
	Metadata   json.RawMessage `db:"metadata"`
	CreatedAt  time.Time       `db:"created_at"`
}
