package schema

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dealsync/internal/store"
	"github.com/sells-group/dealsync/pkg/hubspot"
)

// Key identifies one cached schema.
type Key struct {
	ConnectionID string
	ObjectType   string
}

// Entry is a cached schema with the time it was fetched from the CRM.
type Entry struct {
	Schema    *Schema
	FetchedAt time.Time
}

// Tier is one level of the schema cache. Get never fails: an unreadable
// entry is a miss. Invalidate with an empty ObjectType drops every entry of
// the connection.
type Tier interface {
	Get(ctx context.Context, key Key) (Entry, bool)
	Set(ctx context.Context, key Key, e Entry)
	Invalidate(ctx context.Context, key Key)
}

// MemoryTier is an in-process Tier.
type MemoryTier struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

// NewMemoryTier returns an empty in-process tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{entries: make(map[Key]Entry)}
}

func (m *MemoryTier) Get(_ context.Context, key Key) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok
}

func (m *MemoryTier) Set(_ context.Context, key Key, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
}

func (m *MemoryTier) Invalidate(_ context.Context, key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key.ObjectType != "" {
		delete(m.entries, key)
		return
	}
	for k := range m.entries {
		if k.ConnectionID == key.ConnectionID {
			delete(m.entries, k)
		}
	}
}

// DurableStore is the persistence the durable tier needs.
type DurableStore interface {
	GetSchemaCache(ctx context.Context, connectionID, objectType string) (*store.SchemaCacheEntry, error)
	SetSchemaCache(ctx context.Context, entry store.SchemaCacheEntry) error
	DeleteSchemaCache(ctx context.Context, connectionID, objectType string) error
}

// DurableTier serializes schemas into a DurableStore. Store failures are
// logged and treated as misses.
type DurableTier struct {
	store DurableStore
}

// NewDurableTier wraps a store.
func NewDurableTier(s DurableStore) *DurableTier {
	return &DurableTier{store: s}
}

func (d *DurableTier) Get(ctx context.Context, key Key) (Entry, bool) {
	row, err := d.store.GetSchemaCache(ctx, key.ConnectionID, key.ObjectType)
	if err != nil {
		zap.L().Warn("schema: durable cache read failed",
			zap.String("connection_id", key.ConnectionID),
			zap.String("object_type", key.ObjectType),
			zap.Error(err),
		)
		return Entry{}, false
	}
	if row == nil {
		return Entry{}, false
	}

	var props []hubspot.Property
	if err := json.Unmarshal(row.Properties, &props); err != nil {
		zap.L().Warn("schema: durable cache entry unreadable", zap.String("object_type", key.ObjectType), zap.Error(err))
		return Entry{}, false
	}
	var pipelines []hubspot.Pipeline
	if len(row.Pipelines) > 0 {
		if err := json.Unmarshal(row.Pipelines, &pipelines); err != nil {
			zap.L().Warn("schema: durable cache entry unreadable", zap.String("object_type", key.ObjectType), zap.Error(err))
			return Entry{}, false
		}
	}
	return Entry{Schema: New(key.ObjectType, props, pipelines), FetchedAt: row.FetchedAt}, true
}

func (d *DurableTier) Set(ctx context.Context, key Key, e Entry) {
	props, err := json.Marshal(e.Schema.Properties)
	if err != nil {
		zap.L().Warn("schema: marshal properties", zap.Error(err))
		return
	}
	var pipelines []byte
	if len(e.Schema.Pipelines) > 0 {
		if pipelines, err = json.Marshal(e.Schema.Pipelines); err != nil {
			zap.L().Warn("schema: marshal pipelines", zap.Error(err))
			return
		}
	}
	err = d.store.SetSchemaCache(ctx, store.SchemaCacheEntry{
		ConnectionID: key.ConnectionID,
		ObjectType:   key.ObjectType,
		Properties:   props,
		Pipelines:    pipelines,
		FetchedAt:    e.FetchedAt,
	})
	if err != nil {
		zap.L().Warn("schema: durable cache write failed",
			zap.String("connection_id", key.ConnectionID),
			zap.String("object_type", key.ObjectType),
			zap.Error(err),
		)
	}
}

func (d *DurableTier) Invalidate(ctx context.Context, key Key) {
	if err := d.store.DeleteSchemaCache(ctx, key.ConnectionID, key.ObjectType); err != nil {
		zap.L().Warn("schema: durable cache invalidate failed",
			zap.String("connection_id", key.ConnectionID),
			zap.String("object_type", key.ObjectType),
			zap.Error(err),
		)
	}
}
