// Package tenant resolves the owning organization of a request from
// its hostname, before any organization-scoped data is read.
//
// Two mappings are supported: subdomains of the platform's base domain
// ("acme.gigguin.example" -> the organization with subdomain "acme")
// and fully custom domains ("bookings.acme.example" -> whatever
// organization registered that domain).
package tenant

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrUnknownTenant is returned when a hostname maps to no organization.
var ErrUnknownTenant = errors.New("unknown tenant")

// DomainStore looks up organization IDs by subdomain or custom domain.
type DomainStore interface {
	OrganizationForSubdomain(ctx context.Context, subdomain string) (string, error)
	OrganizationForDomain(ctx context.Context, domain string) (string, error)
}

// Resolver derives an organization ID from a request hostname.
type Resolver struct {
	baseDomain string
	store      DomainStore
}

// NewResolver creates a Resolver. baseDomain is the platform's own
// domain; hosts below it are treated as tenant subdomains, anything
// else as a candidate custom domain.
func NewResolver(baseDomain string, store DomainStore) *Resolver {
	return &Resolver{
		baseDomain: strings.ToLower(strings.TrimSuffix(baseDomain, ".")),
		store:      store,
	}
}

// ResolveOrganization maps a hostname to an organization ID.
// Returns ErrUnknownTenant for the bare base domain, unknown
// subdomains, and unregistered custom domains.
func (r *Resolver) ResolveOrganization(ctx context.Context, hostname string) (string, error) {
	host := normalizeHost(hostname)
	if host == "" {
		return "", ErrUnknownTenant
	}

	if host == r.baseDomain || host == "www."+r.baseDomain {
		return "", ErrUnknownTenant
	}

	if sub, ok := strings.CutSuffix(host, "."+r.baseDomain); ok {
		// Only a single label is a tenant subdomain.
		if sub == "" || strings.Contains(sub, ".") {
			return "", ErrUnknownTenant
		}
		return r.lookup(r.store.OrganizationForSubdomain(ctx, sub))
	}

	return r.lookup(r.store.OrganizationForDomain(ctx, host))
}

func (r *Resolver) lookup(orgID string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if orgID == "" {
		return "", ErrUnknownTenant
	}
	return orgID, nil
}

func normalizeHost(hostname string) string {
	host := strings.TrimSpace(strings.ToLower(hostname))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}
