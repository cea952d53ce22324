package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gigguin/bookflow/pkg/api"
)

// PostgresPipelineStore is a PipelineStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresPipelineStore struct {
	db *sql.DB
}

// Ensure PostgresPipelineStore implements PipelineStore.
var _ PipelineStore = (*PostgresPipelineStore)(nil)

// NewPostgresPipelineStore initializes the required schema in the given
// database and returns a new PostgresPipelineStore.
func NewPostgresPipelineStore(db *sql.DB) (*PostgresPipelineStore, error) {
	s := &PostgresPipelineStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresPipelineStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS pipelines (
			event_id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			version BIGINT NOT NULL,
			hold_expires_at BIGINT NOT NULL DEFAULT 0,
			offer_expires_at BIGINT NOT NULL DEFAULT 0,
			payload BYTEA NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_pipelines_org_stage
			ON pipelines (organization_id, stage);`,
	)
	return err
}

func (s *PostgresPipelineStore) SavePipeline(ctx context.Context, p *api.Pipeline) error {
	payload, err := EncodePipeline(p)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pipelines (event_id, organization_id, stage, version, hold_expires_at, offer_expires_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		p.EventID,
		p.OrganizationID,
		string(p.Stage),
		p.Version,
		expiryUnix(p.HoldExpiresAt),
		expiryUnix(p.OfferExpiresAt),
		payload,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPipelineExists
	}

	return nil
}

func (s *PostgresPipelineStore) UpdatePipeline(ctx context.Context, p *api.Pipeline, expectedVersion int64) error {
	payload, err := EncodePipeline(p)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE pipelines
		SET organization_id = $1, stage = $2, version = $3, hold_expires_at = $4, offer_expires_at = $5, payload = $6
		WHERE event_id = $7 AND version = $8`,
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
		var exists int
		row := s.db.QueryRowContext(ctx, `SELECT 1 FROM pipelines WHERE event_id = $1`, p.EventID)
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

func (s *PostgresPipelineStore) GetPipeline(ctx context.Context, eventID string) (*api.Pipeline, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payload FROM pipelines WHERE event_id = $1`,
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

func (s *PostgresPipelineStore) ListPipelines(ctx context.Context, filter PipelineFilter) ([]*api.Pipeline, error) {
	query := `SELECT payload FROM pipelines`
	var args []any
	var clauses []string

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OrganizationID != "" {
		clauses = append(clauses, "organization_id = "+arg(filter.OrganizationID))
	}
	if filter.Stage != "" {
		clauses = append(clauses, "stage = "+arg(string(filter.Stage)))
	}
	if !filter.DueBefore.IsZero() {
		clauses = append(clauses, fmt.Sprintf(
			"((stage = %s AND hold_expires_at > 0 AND hold_expires_at <= %s) OR (stage = %s AND offer_expires_at > 0 AND offer_expires_at <= %s))",
			arg(string(api.StageHold)), arg(filter.DueBefore.Unix()),
			arg(string(api.StageOffer)), arg(filter.DueBefore.Unix()),
		))
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
