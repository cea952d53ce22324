package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/gigguin/bookflow/pkg/api"
)

// SQLitePipelineStore is a PipelineStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
//
// The full record is stored as a gob payload; stage, organization and
// the two expiry deadlines are mirrored into indexed columns so that
// listing and expiry sweeps stay in SQL.
type SQLitePipelineStore struct {
	db *sql.DB
}

// Ensure SQLitePipelineStore implements PipelineStore.
var _ PipelineStore = (*SQLitePipelineStore)(nil)

// NewSQLitePipelineStore initializes the required schema in the given
// database and returns a new SQLitePipelineStore.
func NewSQLitePipelineStore(db *sql.DB) (*SQLitePipelineStore, error) {
	s := &SQLitePipelineStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLitePipelineStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS pipelines (
			event_id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			version INTEGER NOT NULL,
			hold_expires_at INTEGER NOT NULL DEFAULT 0,
			offer_expires_at INTEGER NOT NULL DEFAULT 0,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_pipelines_org_stage
			ON pipelines (organization_id, stage);`,
	)
	return err
}

func expiryUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func (s *SQLitePipelineStore) SavePipeline(ctx context.Context, p *api.Pipeline) error {
	payload, err := EncodePipeline(p)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipelines (event_id, organization_id, stage, version, hold_expires_at, offer_expires_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.EventID,
		p.OrganizationID,
		string(p.Stage),
		p.Version,
		expiryUnix(p.HoldExpiresAt),
		expiryUnix(p.OfferExpiresAt),
		payload,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrPipelineExists
	}
	return err
}

func (s *SQLitePipelineStore) UpdatePipeline(ctx context.Context, p *api.Pipeline, expectedVersion int64) error {
	payload, err := EncodePipeline(p)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE pipelines
		SET organization_id = ?, stage = ?, version = ?, hold_expires_at = ?, offer_expires_at = ?, payload = ?
		WHERE event_id = ? AND version = ?`,
		p.OrganizationID,
		string(p.Stage),
		p.Version,
		expiryUnix(p.HoldExpiresAt),
		expiryUnix(p.OfferExpiresAt),
		payload,
		p.EventID,
		expectedVersion,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a lost race from a missing record.
		var exists int
		row := s.db.QueryRowContext(ctx, `SELECT 1 FROM pipelines WHERE event_id = ?`, p.EventID)
		if scanErr := row.Scan(&exists); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return ErrPipelineNotFound
			}
			return scanErr
		}
		return ErrVersionConflict
	}

	return nil
}

func (s *SQLitePipelineStore) GetPipeline(ctx context.Context, eventID string) (*api.Pipeline, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payload FROM pipelines WHERE event_id = ?`,
		eventID,
	)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPipelineNotFound
		}
		return nil, err
	}

	return DecodePipeline(payload)
}

func (s *SQLitePipelineStore) ListPipelines(ctx context.Context, filter PipelineFilter) ([]*api.Pipeline, error) {
	query := `SELECT payload FROM pipelines`
	var args []any
	var clauses []string

	if filter.OrganizationID != "" {
		clauses = append(clauses, "organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.Stage != "" {
		clauses = append(clauses, "stage = ?")
		args = append(args, string(filter.Stage))
	}
	if !filter.DueBefore.IsZero() {
		clauses = append(clauses,
			"((stage = ? AND hold_expires_at > 0 AND hold_expires_at <= ?) OR (stage = ? AND offer_expires_at > 0 AND offer_expires_at <= ?))")
		args = append(args,
			string(api.StageHold), filter.DueBefore.Unix(),
			string(api.StageOffer), filter.DueBefore.Unix(),
		)
	}

	if len(clauses) > 0 {
		query = query + " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pipelines []*api.Pipeline

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		p, err := DecodePipeline(payload)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return pipelines, nil
}
