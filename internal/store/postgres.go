package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealsync/internal/db"
	"github.com/sells-group/dealsync/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS crm_schema_cache (
	connection_id TEXT NOT NULL,
	object_type   TEXT NOT NULL,
	properties    JSONB NOT NULL,
	pipelines     JSONB,
	fetched_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (connection_id, object_type)
);

CREATE TABLE IF NOT EXISTS crm_audit_log (
	seq           BIGSERIAL,
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	approval_id   TEXT NOT NULL,
	connection_id TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id   TEXT NOT NULL DEFAULT '',
	payload       JSONB,
	status        TEXT NOT NULL DEFAULT 'pending',
	error         TEXT NOT NULL DEFAULT '',
	retry_count   INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_crm_audit_log_approval ON crm_audit_log(approval_id, seq);
CREATE INDEX IF NOT EXISTS idx_crm_audit_log_status_updated ON crm_audit_log(status, updated_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetSchemaCache(ctx context.Context, connectionID, objectType string) (*SchemaCacheEntry, error) {
	e := SchemaCacheEntry{ConnectionID: connectionID, ObjectType: objectType}
	var props, pipelines []byte
	err := s.pool.QueryRow(ctx,
		`SELECT properties, pipelines, fetched_at FROM crm_schema_cache WHERE connection_id = $1 AND object_type = $2`,
		connectionID, objectType,
	).Scan(&props, &pipelines, &e.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get schema cache %s/%s", connectionID, objectType)
	}
	e.Properties = props
	e.Pipelines = pipelines
	return &e, nil
}

func (s *PostgresStore) SetSchemaCache(ctx context.Context, entry SchemaCacheEntry) error {
	var pipelines []byte
	if len(entry.Pipelines) > 0 {
		pipelines = entry.Pipelines
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crm_schema_cache (connection_id, object_type, properties, pipelines, fetched_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (connection_id, object_type) DO UPDATE
		 SET properties = EXCLUDED.properties, pipelines = EXCLUDED.pipelines, fetched_at = EXCLUDED.fetched_at`,
		entry.ConnectionID, entry.ObjectType, []byte(entry.Properties), pipelines, entry.FetchedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: set schema cache %s/%s", entry.ConnectionID, entry.ObjectType)
}

func (s *PostgresStore) DeleteSchemaCache(ctx context.Context, connectionID, objectType string) error {
	var err error
	if objectType == "" {
		_, err = s.pool.Exec(ctx, `DELETE FROM crm_schema_cache WHERE connection_id = $1`, connectionID)
	} else {
		_, err = s.pool.Exec(ctx,
			`DELETE FROM crm_schema_cache WHERE connection_id = $1 AND object_type = $2`,
			connectionID, objectType)
	}
	return eris.Wrapf(err, "postgres: delete schema cache %s/%s", connectionID, objectType)
}

func (s *PostgresStore) CreateAuditRecord(ctx context.Context, rec *model.AuditRecord) error {
	prepareAuditRecord(rec, uuid.NewString)
	var payload []byte
	if len(rec.Payload) > 0 {
		payload = rec.Payload
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crm_audit_log (id, approval_id, connection_id, action, resource_type, resource_id, payload, status, error, retry_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.ApprovalID, rec.ConnectionID, string(rec.Action), rec.ResourceType, rec.ResourceID,
		payload, string(rec.Status), rec.Error, rec.RetryCount, rec.CreatedAt, rec.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert audit record %s", rec.Action)
}

// UpdateAuditRecord applies a status transition. Empty resource id and error
// leave the stored values untouched.
func (s *PostgresStore) UpdateAuditRecord(ctx context.Context, id string, upd model.AuditUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE crm_audit_log
		 SET status = $1,
		     resource_id = CASE WHEN $2 = '' THEN resource_id ELSE $2 END,
		     error = CASE WHEN $1 = 'success' THEN '' WHEN $3 = '' THEN error ELSE $3 END,
		     retry_count = GREATEST(retry_count, $4),
		     updated_at = $5
		 WHERE id = $6`,
		string(upd.Status), upd.ResourceID, upd.Error, upd.RetryCount, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update audit record %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("audit record not found: %s", id)
	}
	return nil
}

const auditColumns = `id, approval_id, connection_id, action, resource_type, resource_id, payload, status, error, retry_count, created_at, updated_at`

func (s *PostgresStore) ListAuditRecords(ctx context.Context, approvalID string) ([]model.AuditRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auditColumns+` FROM crm_audit_log WHERE approval_id = $1 ORDER BY seq`,
		approvalID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list audit records %s", approvalID)
	}
	return collectPgAuditRows(rows)
}

func (s *PostgresStore) ListStaleAuditRecords(ctx context.Context, olderThan time.Time) ([]model.AuditRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auditColumns+` FROM crm_audit_log WHERE status IN ('pending', 'retrying') AND updated_at < $1 ORDER BY seq`,
		olderThan.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stale audit records")
	}
	return collectPgAuditRows(rows)
}

func collectPgAuditRows(rows pgx.Rows) ([]model.AuditRecord, error) {
	defer rows.Close()

	var out []model.AuditRecord
	for rows.Next() {
		var r model.AuditRecord
		var action, status string
		var payload []byte
		if err := rows.Scan(&r.ID, &r.ApprovalID, &r.ConnectionID, &action, &r.ResourceType, &r.ResourceID,
			&payload, &status, &r.Error, &r.RetryCount, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit record")
		}
		r.Action = model.AuditAction(action)
		r.Status = model.AuditStatus(status)
		r.Payload = payload
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate audit records")
}
