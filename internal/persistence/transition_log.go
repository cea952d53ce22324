package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/gigguin/bookflow/pkg/api"
)

// TransitionRecord is a minimal append-only audit row for one accepted
// stage transition. The canonical history lives on the pipeline record;
// this log is the export/audit surface.
type TransitionRecord struct {
	ID             string
	EventID        string
	OrganizationID string
	From           api.Stage
	To             api.Stage
	At             time.Time
	Actor          string
	Automatic      bool
	Notes          string
}

// TransitionLog is an append-only audit store for accepted transitions.
type TransitionLog interface {
	AppendTransition(ctx context.Context, rec TransitionRecord) error
	ListTransitions(ctx context.Context, eventID string) ([]TransitionRecord, error)
}

// NoopTransitionLog discards all records.
type NoopTransitionLog struct{}

func (NoopTransitionLog) AppendTransition(ctx context.Context, rec TransitionRecord) error { return nil }
func (NoopTransitionLog) ListTransitions(ctx context.Context, eventID string) ([]TransitionRecord, error) {
	return nil, nil
}

// SQLiteTransitionLog stores transition audit rows in SQLite.
type SQLiteTransitionLog struct {
	db *sql.DB
}

var _ TransitionLog = (*SQLiteTransitionLog)(nil)

func NewSQLiteTransitionLog(db *sql.DB) (*SQLiteTransitionLog, error) {
	s := &SQLiteTransitionLog{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteTransitionLog) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS pipeline_transitions (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			organization_id TEXT NOT NULL DEFAULT '',
			from_stage TEXT NOT NULL,
			to_stage TEXT NOT NULL,
			at INTEGER NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			automatic INTEGER NOT NULL DEFAULT 0,
			notes TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_pipeline_transitions_event_id ON pipeline_transitions(event_id, at);
	`)
	return err
}

func (s *SQLiteTransitionLog) AppendTransition(ctx context.Context, rec TransitionRecord) error {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_transitions (id, event_id, organization_id, from_stage, to_stage, at, actor, automatic, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		rec.EventID,
		rec.OrganizationID,
		string(rec.From),
		string(rec.To),
		at.UnixNano(),
		rec.Actor,
		rec.Automatic,
		rec.Notes,
	)
	return err
}

func (s *SQLiteTransitionLog) ListTransitions(ctx context.Context, eventID string) ([]TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, organization_id, from_stage, to_stage, at, actor, automatic, notes
		FROM pipeline_transitions
		WHERE event_id = ?
		ORDER BY at ASC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TransitionRecord
	for rows.Next() {
		var (
			rec       TransitionRecord
			from, to  string
			atN       int64
			automatic bool
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.OrganizationID, &from, &to, &atN, &rec.Actor, &automatic, &rec.Notes); err != nil {
			return nil, err
		}
		rec.From = api.Stage(from)
		rec.To = api.Stage(to)
		rec.At = time.Unix(0, atN)
		rec.Automatic = automatic
		out = append(out, rec)
	}
	return out, rows.Err()
}
