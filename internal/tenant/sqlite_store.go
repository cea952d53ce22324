package tenant

import (
	"context"
	"database/sql"
	"errors"
)

// SQLiteDomainStore is a DomainStore backed by SQLite, sharing the same
// database as the pipeline store.
type SQLiteDomainStore struct {
	db *sql.DB
}

var _ DomainStore = (*SQLiteDomainStore)(nil)

// NewSQLiteDomainStore initializes the required schema in the given
// database and returns a new SQLiteDomainStore.
func NewSQLiteDomainStore(db *sql.DB) (*SQLiteDomainStore, error) {
	s := &SQLiteDomainStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDomainStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS organization_domains (
			key TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('subdomain', 'domain')),
			organization_id TEXT NOT NULL,
			PRIMARY KEY (key, kind)
		);`,
	)
	return err
}

// Register binds a subdomain or custom domain to an organization,
// replacing any previous binding.
func (s *SQLiteDomainStore) Register(ctx context.Context, key, kind, orgID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organization_domains (key, kind, organization_id)
		VALUES (?, ?, ?)
		ON CONFLICT (key, kind) DO UPDATE SET organization_id = excluded.organization_id`,
		key, kind, orgID,
	)
	return err
}

func (s *SQLiteDomainStore) OrganizationForSubdomain(ctx context.Context, subdomain string) (string, error) {
	return s.lookup(ctx, subdomain, "subdomain")
}

func (s *SQLiteDomainStore) OrganizationForDomain(ctx context.Context, domain string) (string, error) {
	return s.lookup(ctx, domain, "domain")
}

func (s *SQLiteDomainStore) lookup(ctx context.Context, key, kind string) (string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT organization_id FROM organization_domains WHERE key = ? AND kind = ?`,
		key, kind,
	)

	var orgID string
	if err := row.Scan(&orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrUnknownTenant
		}
		return "", err
	}
	return orgID, nil
}
