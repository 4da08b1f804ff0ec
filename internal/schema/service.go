package schema

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/dealsync/pkg/hubspot"
)

// Fetcher loads definitions from the CRM. hubspot.Client satisfies it.
type Fetcher interface {
	GetProperties(ctx context.Context, objectType string) ([]hubspot.Property, error)
	GetPipelines(ctx context.Context, objectType string) ([]hubspot.Pipeline, error)
}

// Provider is the read side used by the mapper and orchestrator.
type Provider interface {
	GetSchema(ctx context.Context, objectType string, useCache bool) (*Schema, error)
}

// Option configures a Service.
type Option func(*Service)

// WithMemoryTier replaces the default in-process tier.
func WithMemoryTier(t Tier) Option {
	return func(s *Service) { s.memory = t }
}

// WithDurableTier adds a second, longer-lived tier.
func WithDurableTier(t Tier) Option {
	return func(s *Service) { s.durable = t }
}

// WithMemoryTTL sets how long an in-process entry is fresh. Default: 1h.
func WithMemoryTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.memoryTTL = d
		}
	}
}

// WithDurableTTL sets how long a durable entry is usable. Default: 24h.
func WithDurableTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.durableTTL = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the two-tier schema cache for one CRM connection.
//
// A stale in-process entry is still served while a single background
// refresh runs, so readers never block on a refresh of a known schema.
type Service struct {
	fetcher      Fetcher
	connectionID string

	memory     Tier
	durable    Tier
	memoryTTL  time.Duration
	durableTTL time.Duration
	now        func() time.Time

	group singleflight.Group
	bg    sync.WaitGroup
}

// NewService creates a schema cache for connectionID.
func NewService(fetcher Fetcher, connectionID string, opts ...Option) *Service {
	s := &Service{
		fetcher:      fetcher,
		connectionID: connectionID,
		memory:       NewMemoryTier(),
		memoryTTL:    time.Hour,
		durableTTL:   24 * time.Hour,
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetSchema returns the schema for objectType. With useCache false the CRM
// is always consulted and both tiers are refreshed.
func (s *Service) GetSchema(ctx context.Context, objectType string, useCache bool) (*Schema, error) {
	key := Key{ConnectionID: s.connectionID, ObjectType: objectType}

	if useCache {
		if e, ok := s.memory.Get(ctx, key); ok {
			if s.now().Sub(e.FetchedAt) >= s.memoryTTL {
				s.refreshInBackground(ctx, key)
			}
			return e.Schema, nil
		}

		if s.durable != nil {
			if e, ok := s.durable.Get(ctx, key); ok && s.now().Sub(e.FetchedAt) < s.durableTTL {
				s.memory.Set(ctx, key, Entry{Schema: e.Schema, FetchedAt: s.now()})
				return e.Schema, nil
			}
		}
	}

	v, err, _ := s.group.Do(flightKey(key), func() (any, error) {
		return s.fetch(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Schema), nil
}

// Invalidate drops cached entries for objectType, or for every object type
// of the connection when objectType is empty.
func (s *Service) Invalidate(ctx context.Context, objectType string) {
	key := Key{ConnectionID: s.connectionID, ObjectType: objectType}
	s.memory.Invalidate(ctx, key)
	if s.durable != nil {
		s.durable.Invalidate(ctx, key)
	}
	if objectType != "" {
		s.group.Forget(flightKey(key))
	}
	zap.L().Info("schema: invalidated",
		zap.String("connection_id", s.connectionID),
		zap.String("object_type", objectType),
	)
}

func (s *Service) refreshInBackground(ctx context.Context, key Key) {
	ctx = context.WithoutCancel(ctx)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		_, err, _ := s.group.Do(flightKey(key), func() (any, error) {
			return s.fetch(ctx, key)
		})
		if err != nil {
			zap.L().Warn("schema: background refresh failed",
				zap.String("object_type", key.ObjectType),
				zap.Error(err),
			)
		}
	}()
}

func (s *Service) fetch(ctx context.Context, key Key) (*Schema, error) {
	props, err := s.fetcher.GetProperties(ctx, key.ObjectType)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: fetch %s properties", key.ObjectType)
	}

	var pipelines []hubspot.Pipeline
	if key.ObjectType == hubspot.ObjectDeals {
		pipelines, err = s.fetcher.GetPipelines(ctx, key.ObjectType)
		if err != nil {
			return nil, eris.Wrapf(err, "schema: fetch %s pipelines", key.ObjectType)
		}
	}

	sc := New(key.ObjectType, props, pipelines)
	e := Entry{Schema: sc, FetchedAt: s.now()}
	s.memory.Set(ctx, key, e)
	if s.durable != nil {
		s.durable.Set(ctx, key, e)
	}

	zap.L().Debug("schema: fetched",
		zap.String("object_type", key.ObjectType),
		zap.Int("properties", len(props)),
		zap.Int("pipelines", len(pipelines)),
	)
	return sc, nil
}

func flightKey(k Key) string {
	return k.ConnectionID + "\x00" + k.ObjectType
}
