package audit

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"
	"github.com/jmoiron/sqlx"
)

// Store is the durable-store side of C5: one `events` row per transition
// plus an upsert on the `sessions` summary row, both idempotent on
// (session_id, version) per spec.md §4.5.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an already-open *sql.DB (see internal/platform/database)
// with sqlx for named-parameter statements and struct scanning.
func NewStore(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

const insertEventSQL = `
INSERT INTO events (session_id, version, event_kind, payload, occurred_at)
VALUES (:session_id, :version, :event_kind, :payload, :occurred_at)
ON CONFLICT (session_id, version) DO NOTHING
`

const upsertSessionSQL = `
INSERT INTO sessions (session_id, status, sync_mode, version, payload, updated_at)
VALUES (:session_id, :status, :sync_mode, :version, :payload, :updated_at)
ON CONFLICT (session_id) DO UPDATE SET
  status = EXCLUDED.status,
  sync_mode = EXCLUDED.sync_mode,
  version = EXCLUDED.version,
  payload = EXCLUDED.payload,
  updated_at = EXCLUDED.updated_at
WHERE sessions.version < EXCLUDED.version
`

type eventRow struct {
	SessionID  string `db:"session_id"`
	Version    int64  `db:"version"`
	EventKind  string `db:"event_kind"`
	Payload    []byte `db:"payload"`
	OccurredAt interface{} `db:"occurred_at"`
}

type sessionRow struct {
	SessionID string      `db:"session_id"`
	Status    string      `db:"status"`
	SyncMode  string      `db:"sync_mode"`
	Version   int64       `db:"version"`
	Payload   []byte      `db:"payload"`
	UpdatedAt interface{} `db:"updated_at"`
}

// Write performs both the events insert and the sessions upsert inside a
// single transaction, so a crash between the two never leaves the
// summary row pointing at an unrecorded event.
func (s *Store) Write(ctx context.Context, job Job) error {
	payload, err := marshalState(job.State)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.NamedExecContext(ctx, insertEventSQL, eventRow{
		SessionID:  job.SessionID,
		Version:    job.Version,
		EventKind:  string(job.EventKind),
		Payload:    payload,
		OccurredAt: job.EnqueuedAt,
	}); err != nil {
		return err
	}

	if _, err := tx.NamedExecContext(ctx, upsertSessionSQL, sessionRow{
		SessionID: job.SessionID,
		Status:    string(job.State.Status),
		SyncMode:  string(job.State.SyncMode),
		Version:   job.Version,
		Payload:   payload,
		UpdatedAt: job.EnqueuedAt,
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// Ping validates connectivity, for the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func marshalState(st *session.Session) ([]byte, error) {
	return json.Marshal(st)
}
