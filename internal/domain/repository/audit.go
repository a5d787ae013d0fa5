package repository

import (
	"context"

	"github.com/polkiloo/marketplace/internal/domain/model"
)

// AuditRepository stores audit trail entries.
type AuditRepository interface {
	Record(ctx context.Context, entry model.AuditEntry) error
}
