package usecase

import (
	"context"
	"log/slog"

	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/domain/repository"
)

// AuditUseCase is a best-effort side channel: recording failures are logged
// and never propagate into the operation being audited.
type AuditUseCase struct {
	audit  repository.AuditRepository
	logger *slog.Logger
}

// NewAuditUseCase constructs AuditUseCase.
func NewAuditUseCase(audit repository.AuditRepository, logger *slog.Logger) *AuditUseCase {
	return &AuditUseCase{audit: audit, logger: logger}
}

// Record persists an audit entry, swallowing storage errors.
func (u *AuditUseCase) Record(ctx context.Context, entry model.AuditEntry) {
	if err := u.audit.Record(ctx, entry); err != nil {
		u.logger.Error("audit record failed",
			"action", entry.Action,
			"entity", entry.Entity,
			"entity_id", entry.EntityID,
			"error", err,
		)
	}
}
