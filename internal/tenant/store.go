package tenant

import (
	"context"
	"sync"
)

// InMemoryDomainStore is a goroutine-safe DomainStore backed by maps.
// Useful for tests and single-process deployments.
type InMemoryDomainStore struct {
	mu         sync.RWMutex
	subdomains map[string]string
	domains    map[string]string
}

var _ DomainStore = (*InMemoryDomainStore)(nil)

// NewInMemoryDomainStore creates an empty InMemoryDomainStore.
func NewInMemoryDomainStore() *InMemoryDomainStore {
	return &InMemoryDomainStore{
		subdomains: make(map[string]string),
		domains:    make(map[string]string),
	}
}

// AddSubdomain registers a tenant subdomain for an organization.
func (s *InMemoryDomainStore) AddSubdomain(subdomain, orgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subdomains[subdomain] = orgID
}

// AddDomain registers a custom domain for an organization.
func (s *InMemoryDomainStore) AddDomain(domain, orgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains[domain] = orgID
}

func (s *InMemoryDomainStore) OrganizationForSubdomain(ctx context.Context, subdomain string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orgID, ok := s.subdomains[subdomain]
	if !ok {
		return "", ErrUnknownTenant
	}
	return orgID, nil
}

func (s *InMemoryDomainStore) OrganizationForDomain(ctx context.Context, domain string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orgID, ok := s.domains[domain]
	if !ok {
		return "", ErrUnknownTenant
	}
	return orgID, nil
}
