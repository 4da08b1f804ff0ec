package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealsync/internal/model"
	"github.com/sells-group/dealsync/pkg/hubspot"
)

// Orphan is a company or contact created by a sync whose deal step never
// succeeded.
type Orphan struct {
	AuditID      string            `json:"audit_id"`
	Action       model.AuditAction `json:"action"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	CreatedAt    time.Time         `json:"created_at"`
}

// AbandonedMessage is the error recorded on expired pending records.
const AbandonedMessage = "abandoned"

var deleteActions = map[model.AuditAction]model.AuditAction{
	model.ActionCreateCompany: model.ActionDeleteCompany,
	model.ActionCreateContact: model.ActionDeleteContact,
}

// Reconciler finds and removes records left behind by failed syncs.
type Reconciler struct {
	crm          hubspot.Client
	ledger       AuditLedger
	connectionID string
	now          func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(crm hubspot.Client, ledger AuditLedger, connectionID string) *Reconciler {
	return &Reconciler{crm: crm, ledger: ledger, connectionID: connectionID, now: time.Now}
}

// FindOrphans lists the companies and contacts created under approvalID
// when no deal step of that approval succeeded. Records already deleted by
// an earlier cleanup are excluded.
func (r *Reconciler) FindOrphans(ctx context.Context, approvalID string) ([]Orphan, error) {
	records, err := r.ledger.ListAuditRecords(ctx, approvalID)
	if err != nil {
		return nil, eris.Wrapf(err, "syncer: list audit records for %s", approvalID)
	}

	deleted := make(map[string]bool)
	for _, ar := range records {
		if ar.Action.IsDealStep() && ar.Status == model.AuditStatusSuccess {
			return nil, nil
		}
		if (ar.Action == model.ActionDeleteCompany || ar.Action == model.ActionDeleteContact) &&
			ar.Status == model.AuditStatusSuccess {
			deleted[ar.ResourceType+"/"+ar.ResourceID] = true
		}
	}

	var out []Orphan
	for _, ar := range records {
		if _, ok := deleteActions[ar.Action]; !ok {
			continue
		}
		if ar.Status != model.AuditStatusSuccess || ar.ResourceID == "" || deleted[ar.ResourceType+"/"+ar.ResourceID] {
			continue
		}
		out = append(out, Orphan{
			AuditID:      ar.ID,
			Action:       ar.Action,
			ResourceType: ar.ResourceType,
			ResourceID:   ar.ResourceID,
			CreatedAt:    ar.CreatedAt,
		})
	}
	return out, nil
}

// Cleanup deletes the orphans of approvalID, auditing each deletion under
// the same approval. A record already gone from the CRM counts as deleted.
func (r *Reconciler) Cleanup(ctx context.Context, approvalID string) ([]Orphan, error) {
	orphans, err := r.FindOrphans(ctx, approvalID)
	if err != nil {
		return nil, err
	}

	rec := &recorder{ledger: r.ledger, approvalID: approvalID, connectionID: r.connectionID}
	var removed []Orphan
	var errs []error
	for _, orphan := range orphans {
		s := rec.begin(ctx, deleteActions[orphan.Action], orphan.ResourceType, orphan)
		err := r.crm.DeleteObject(s.ctx(ctx), orphan.ResourceType, orphan.ResourceID)
		if err != nil && !hubspot.IsNotFound(err) {
			s.fail(ctx, err)
			errs = append(errs, eris.Wrapf(err, "syncer: delete %s %s", orphan.ResourceType, orphan.ResourceID))
			continue
		}
		s.succeed(ctx, orphan.ResourceID)
		removed = append(removed, orphan)
	}

	zap.L().Info("syncer: orphan cleanup",
		zap.String("approval_id", approvalID),
		zap.Int("found", len(orphans)),
		zap.Int("removed", len(removed)),
	)
	return removed, errors.Join(errs...)
}

// ExpireStale marks pending or retrying records not updated within
// olderThan as failed. It returns the number of records expired.
func (r *Reconciler) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := r.now().Add(-olderThan)
	records, err := r.ledger.ListStaleAuditRecords(ctx, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "syncer: list stale audit records")
	}

	n := 0
	for _, ar := range records {
		if ar.Status.Terminal() {
			continue
		}
		err := r.ledger.UpdateAuditRecord(ctx, ar.ID, model.AuditUpdate{
			Status:     model.AuditStatusFailed,
			Error:      AbandonedMessage,
			RetryCount: ar.RetryCount,
		})
		if err != nil {
			return n, eris.Wrapf(err, "syncer: expire audit record %s", ar.ID)
		}
		n++
	}
	if n > 0 {
		zap.L().Info("syncer: expired abandoned audit records", zap.Int("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}
