// Package store persists the durable schema cache and the CRM audit ledger.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sells-group/dealsync/internal/model"
)

// SchemaCacheEntry is one serialized schema keyed by connection and object type.
type SchemaCacheEntry struct {
	ConnectionID string          `json:"connection_id"`
	ObjectType   string          `json:"object_type"`
	Properties   json.RawMessage `json:"properties"`
	Pipelines    json.RawMessage `json:"pipelines,omitempty"`
	FetchedAt    time.Time       `json:"fetched_at"`
}

// Store defines the persistence interface for the sync engine.
type Store interface {
	// Schema cache. GetSchemaCache returns nil, nil on a miss. An empty
	// objectType in DeleteSchemaCache drops every entry of the connection.
	GetSchemaCache(ctx context.Context, connectionID, objectType string) (*SchemaCacheEntry, error)
	SetSchemaCache(ctx context.Context, entry SchemaCacheEntry) error
	DeleteSchemaCache(ctx context.Context, connectionID, objectType string) error

	// Audit ledger
	CreateAuditRecord(ctx context.Context, rec *model.AuditRecord) error
	UpdateAuditRecord(ctx context.Context, id string, upd model.AuditUpdate) error
	ListAuditRecords(ctx context.Context, approvalID string) ([]model.AuditRecord, error)
	ListStaleAuditRecords(ctx context.Context, olderThan time.Time) ([]model.AuditRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// prepareAuditRecord fills the id and timestamps of a new record.
func prepareAuditRecord(rec *model.AuditRecord, newID func() string) {
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.Status == "" {
		rec.Status = model.AuditStatusPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt
}
