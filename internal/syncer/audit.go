package syncer

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dealsync/internal/model"
	"github.com/sells-group/dealsync/pkg/hubspot"
)

// AuditLedger is the append-only store of mutation attempts.
// store.Store satisfies it.
type AuditLedger interface {
	CreateAuditRecord(ctx context.Context, rec *model.AuditRecord) error
	UpdateAuditRecord(ctx context.Context, id string, upd model.AuditUpdate) error
	ListAuditRecords(ctx context.Context, approvalID string) ([]model.AuditRecord, error)
	ListStaleAuditRecords(ctx context.Context, olderThan time.Time) ([]model.AuditRecord, error)
}

// recorder writes the audit records of one approval. Ledger failures are
// logged and never abort the sync.
type recorder struct {
	ledger       AuditLedger
	approvalID   string
	connectionID string
}

// step is one audited mutation attempt.
type step struct {
	rec     *recorder
	id      string
	action  model.AuditAction
	retries int
}

func (r *recorder) begin(ctx context.Context, action model.AuditAction, resourceType string, payload any) *step {
	s := &step{rec: r, action: action}

	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			zap.L().Warn("syncer: marshal audit payload", zap.String("action", string(action)), zap.Error(err))
		} else {
			raw = b
		}
	}

	ar := &model.AuditRecord{
		ApprovalID:   r.approvalID,
		ConnectionID: r.connectionID,
		Action:       action,
		ResourceType: resourceType,
		Payload:      raw,
		Status:       model.AuditStatusPending,
	}
	if err := r.ledger.CreateAuditRecord(ctx, ar); err != nil {
		zap.L().Warn("syncer: audit record not written",
			zap.String("approval_id", r.approvalID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
		return s
	}
	s.id = ar.ID
	return s
}

// ctx returns a context whose transport retries mark the record retrying.
func (s *step) ctx(ctx context.Context) context.Context {
	return hubspot.ContextWithRetryHook(ctx, func(attempt int, err error) {
		s.retries = attempt
		s.update(ctx, model.AuditUpdate{
			Status:     model.AuditStatusRetrying,
			Error:      err.Error(),
			RetryCount: attempt,
		})
	})
}

func (s *step) succeed(ctx context.Context, resourceID string) {
	s.update(ctx, model.AuditUpdate{
		Status:     model.AuditStatusSuccess,
		ResourceID: resourceID,
		RetryCount: s.retries,
	})
}

func (s *step) fail(ctx context.Context, err error) {
	s.update(ctx, model.AuditUpdate{
		Status:     model.AuditStatusFailed,
		Error:      err.Error(),
		RetryCount: s.retries,
	})
}

// failResolved records a failed create that was resolved to an existing
// record, so orphan cleanup never deletes it.
func (s *step) failResolved(ctx context.Context, existingID string, err error) {
	s.update(ctx, model.AuditUpdate{
		Status:     model.AuditStatusFailed,
		ResourceID: existingID,
		Error:      err.Error(),
		RetryCount: s.retries,
	})
}

func (s *step) update(ctx context.Context, upd model.AuditUpdate) {
	if s.id == "" {
		return
	}
	if err := s.rec.ledger.UpdateAuditRecord(context.WithoutCancel(ctx), s.id, upd); err != nil {
		zap.L().Warn("syncer: audit record not updated",
			zap.String("audit_id", s.id),
			zap.String("action", string(s.action)),
			zap.String("status", string(upd.Status)),
			zap.Error(err),
		)
	}
}
