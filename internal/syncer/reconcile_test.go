package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealsync/internal/model"
	"github.com/sells-group/dealsync/pkg/hubspot"
)

func failedDealSync(t *testing.T, h *harness, approvalID string) model.SyncResult {
	t.Helper()
	h.crm.FailOn("create", hubspot.ObjectDeals, &hubspot.APIError{Kind: hubspot.KindServer, StatusCode: 503})
	t.Cleanup(func() { h.crm.FailOn("create", hubspot.ObjectDeals, nil) })
	res := h.orch.SyncExtraction(context.Background(), Request{
		ApprovalID: approvalID,
		Extraction: &model.Extraction{CompanyName: "Acme", ContactEmail: "jane@acme.com"},
		Target:     model.SyncTarget{IsNewDeal: true},
	})
	require.False(t, res.Success)
	return res
}

func TestReconciler_FindOrphans(t *testing.T) {
	h := newHarness(t, nil)
	res := failedDealSync(t, h, "appr-o1")
	r := NewReconciler(h.crm, h.ledger, "conn-1")

	orphans, err := r.FindOrphans(context.Background(), "appr-o1")
	require.NoError(t, err)
	require.Len(t, orphans, 2)
	assert.Equal(t, model.ActionCreateCompany, orphans[0].Action)
	assert.Equal(t, res.CompanyID, orphans[0].ResourceID)
	assert.Equal(t, hubspot.ObjectContacts, orphans[1].ResourceType)
	assert.Equal(t, res.ContactID, orphans[1].ResourceID)
}

func TestReconciler_NoOrphansAfterDealSuccess(t *testing.T) {
	h := newHarness(t, nil)
	res := h.orch.SyncExtraction(context.Background(), Request{
		ApprovalID: "appr-o2",
		Extraction: &model.Extraction{CompanyName: "Acme"},
		Target:     model.SyncTarget{IsNewDeal: true},
	})
	require.True(t, res.Success)

	orphans, err := NewReconciler(h.crm, h.ledger, "conn-1").FindOrphans(context.Background(), "appr-o2")
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestReconciler_Cleanup(t *testing.T) {
	h := newHarness(t, nil)
	res := failedDealSync(t, h, "appr-o3")
	r := NewReconciler(h.crm, h.ledger, "conn-1")

	// Contact already removed by hand; still counts as cleaned up.
	require.NoError(t, h.crm.DeleteObject(context.Background(), hubspot.ObjectContacts, res.ContactID))

	removed, err := r.Cleanup(context.Background(), "appr-o3")
	require.NoError(t, err)
	assert.Len(t, removed, 2)
	assert.Nil(t, h.crm.Object(hubspot.ObjectCompanies, res.CompanyID))

	recs := h.audit(t, "appr-o3")
	var deletes int
	for _, rec := range recs {
		if rec.Action == model.ActionDeleteCompany || rec.Action == model.ActionDeleteContact {
			deletes++
			assert.Equal(t, model.AuditStatusSuccess, rec.Status)
		}
	}
	assert.Equal(t, 2, deletes)

	orphans, err := r.FindOrphans(context.Background(), "appr-o3")
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestReconciler_CleanupPartialFailure(t *testing.T) {
	h := newHarness(t, nil)
	res := failedDealSync(t, h, "appr-o4")
	h.crm.FailOn("delete", hubspot.ObjectCompanies, &hubspot.APIError{Kind: hubspot.KindScope, StatusCode: 403})

	removed, err := NewReconciler(h.crm, h.ledger, "conn-1").Cleanup(context.Background(), "appr-o4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syncer: delete companies "+res.CompanyID)
	require.Len(t, removed, 1)
	assert.Equal(t, res.ContactID, removed[0].ResourceID)
}

func TestReconciler_ExpireStale(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	old := time.Now().Add(-2 * time.Hour)

	stale := &model.AuditRecord{ApprovalID: "a", Action: model.ActionCreateDeal, ResourceType: hubspot.ObjectDeals, CreatedAt: old}
	retrying := &model.AuditRecord{ApprovalID: "a", Action: model.ActionCreateCompany, ResourceType: hubspot.ObjectCompanies,
		Status: model.AuditStatusRetrying, RetryCount: 2, CreatedAt: old}
	fresh := &model.AuditRecord{ApprovalID: "a", Action: model.ActionCreateContact, ResourceType: hubspot.ObjectContacts}
	done := &model.AuditRecord{ApprovalID: "a", Action: model.ActionCreateTask, ResourceType: hubspot.ObjectTasks,
		Status: model.AuditStatusSuccess, CreatedAt: old}
	for _, rec := range []*model.AuditRecord{stale, retrying, fresh, done} {
		require.NoError(t, h.ledger.CreateAuditRecord(ctx, rec))
	}

	r := NewReconciler(h.crm, h.ledger, "conn-1")
	n, err := r.ExpireStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs := h.audit(t, "a")
	byID := make(map[string]model.AuditRecord, len(recs))
	for _, rec := range recs {
		byID[rec.ID] = rec
	}
	assert.Equal(t, model.AuditStatusFailed, byID[stale.ID].Status)
	assert.Equal(t, AbandonedMessage, byID[stale.ID].Error)
	assert.Equal(t, model.AuditStatusFailed, byID[retrying.ID].Status)
	assert.Equal(t, 2, byID[retrying.ID].RetryCount)
	assert.Equal(t, model.AuditStatusPending, byID[fresh.ID].Status)
	assert.Equal(t, model.AuditStatusSuccess, byID[done.ID].Status)

	r.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = r.ExpireStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
