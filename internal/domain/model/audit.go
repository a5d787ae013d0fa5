package model

import "time"

// AuditEntry records who did what to which entity. Written best-effort:
// a failed audit insert never aborts the operation it describes.
type AuditEntry struct {
	ID       int64
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}
