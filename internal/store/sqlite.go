package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dealsync/internal/model"
)

// sqliteTime is fixed-width so that timestamp strings sort chronologically.
const sqliteTime = "2006-01-02 15:04:05.000000"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS crm_schema_cache (
	connection_id TEXT NOT NULL,
	object_type   TEXT NOT NULL,
	properties    TEXT NOT NULL,
	pipelines     TEXT,
	fetched_at    TEXT NOT NULL,
	PRIMARY KEY (connection_id, object_type)
);

CREATE TABLE IF NOT EXISTS crm_audit_log (
	id            TEXT PRIMARY KEY,
	approval_id   TEXT NOT NULL,
	connection_id TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id   TEXT NOT NULL DEFAULT '',
	payload       TEXT,
	status        TEXT NOT NULL DEFAULT 'pending',
	error         TEXT NOT NULL DEFAULT '',
	retry_count   INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_crm_audit_log_approval ON crm_audit_log(approval_id);
CREATE INDEX IF NOT EXISTS idx_crm_audit_log_status_updated ON crm_audit_log(status, updated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(sqliteTime, s, time.UTC)
	return t, eris.Wrapf(err, "sqlite: parse time %q", s)
}

func (s *SQLiteStore) GetSchemaCache(ctx context.Context, connectionID, objectType string) (*SchemaCacheEntry, error) {
	var props string
	var pipelines sql.NullString
	var fetched string
	err := s.db.QueryRowContext(ctx,
		`SELECT properties, pipelines, fetched_at FROM crm_schema_cache WHERE connection_id = ? AND object_type = ?`,
		connectionID, objectType,
	).Scan(&props, &pipelines, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get schema cache %s/%s", connectionID, objectType)
	}

	fetchedAt, err := parseTime(fetched)
	if err != nil {
		return nil, err
	}
	e := &SchemaCacheEntry{
		ConnectionID: connectionID,
		ObjectType:   objectType,
		Properties:   []byte(props),
		FetchedAt:    fetchedAt,
	}
	if pipelines.Valid {
		e.Pipelines = []byte(pipelines.String)
	}
	return e, nil
}

func (s *SQLiteStore) SetSchemaCache(ctx context.Context, entry SchemaCacheEntry) error {
	var pipelines sql.NullString
	if len(entry.Pipelines) > 0 {
		pipelines = sql.NullString{String: string(entry.Pipelines), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crm_schema_cache (connection_id, object_type, properties, pipelines, fetched_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (connection_id, object_type) DO UPDATE
		 SET properties = excluded.properties, pipelines = excluded.pipelines, fetched_at = excluded.fetched_at`,
		entry.ConnectionID, entry.ObjectType, string(entry.Properties), pipelines, formatTime(entry.FetchedAt),
	)
	return eris.Wrapf(err, "sqlite: set schema cache %s/%s", entry.ConnectionID, entry.ObjectType)
}

func (s *SQLiteStore) DeleteSchemaCache(ctx context.Context, connectionID, objectType string) error {
	var err error
	if objectType == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM crm_schema_cache WHERE connection_id = ?`, connectionID)
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM crm_schema_cache WHERE connection_id = ? AND object_type = ?`,
			connectionID, objectType)
	}
	return eris.Wrapf(err, "sqlite: delete schema cache %s/%s", connectionID, objectType)
}

func (s *SQLiteStore) CreateAuditRecord(ctx context.Context, rec *model.AuditRecord) error {
	prepareAuditRecord(rec, uuid.NewString)
	var payload sql.NullString
	if len(rec.Payload) > 0 {
		payload = sql.NullString{String: string(rec.Payload), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crm_audit_log (id, approval_id, connection_id, action, resource_type, resource_id, payload, status, error, retry_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ApprovalID, rec.ConnectionID, string(rec.Action), rec.ResourceType, rec.ResourceID,
		payload, string(rec.Status), rec.Error, rec.RetryCount, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	return eris.Wrapf(err, "sqlite: insert audit record %s", rec.Action)
}

func (s *SQLiteStore) UpdateAuditRecord(ctx context.Context, id string, upd model.AuditUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE crm_audit_log
		 SET status = ?,
		     resource_id = CASE WHEN ? = '' THEN resource_id ELSE ? END,
		     error = CASE WHEN ? = 'success' THEN '' WHEN ? = '' THEN error ELSE ? END,
		     retry_count = MAX(retry_count, ?),
		     updated_at = ?
		 WHERE id = ?`,
		string(upd.Status), upd.ResourceID, upd.ResourceID, string(upd.Status), upd.Error, upd.Error, upd.RetryCount,
		formatTime(time.Now()), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update audit record %s", id)
	}
	return checkRowsAffected(res, "audit record", id)
}

const sqliteAuditColumns = `id, approval_id, connection_id, action, resource_type, resource_id, payload, status, error, retry_count, created_at, updated_at`

func (s *SQLiteStore) ListAuditRecords(ctx context.Context, approvalID string) ([]model.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteAuditColumns+` FROM crm_audit_log WHERE approval_id = ? ORDER BY created_at, rowid`,
		approvalID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list audit records %s", approvalID)
	}
	return collectSQLiteAuditRows(rows)
}

func (s *SQLiteStore) ListStaleAuditRecords(ctx context.Context, olderThan time.Time) ([]model.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteAuditColumns+` FROM crm_audit_log WHERE status IN ('pending', 'retrying') AND updated_at < ? ORDER BY created_at, rowid`,
		formatTime(olderThan),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stale audit records")
	}
	return collectSQLiteAuditRows(rows)
}

func collectSQLiteAuditRows(rows *sql.Rows) ([]model.AuditRecord, error) {
	defer rows.Close() //nolint:errcheck

	var out []model.AuditRecord
	for rows.Next() {
		var r model.AuditRecord
		var action, status, created, updated string
		var payload sql.NullString
		if err := rows.Scan(&r.ID, &r.ApprovalID, &r.ConnectionID, &action, &r.ResourceType, &r.ResourceID,
			&payload, &status, &r.Error, &r.RetryCount, &created, &updated); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit record")
		}
		r.Action = model.AuditAction(action)
		r.Status = model.AuditStatus(status)
		if payload.Valid {
			r.Payload = []byte(payload.String)
		}
		var err error
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if r.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate audit records")
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", kind, id)
	}
	return nil
}
