package store

import (
	"context"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	"github.com/kurihiro0119/github-data-explorer/internal/logger"
)

// NotAuthenticatedMessage is shown when the integration status cannot be read
const NotAuthenticatedMessage = "You are not authenticated!"

// IntegrationStore tracks whether a GitHub account is connected
type IntegrationStore struct {
	source IntegrationSource
	log    logger.Logger
	status *Surface[domain.IntegrationStatus]
}

// NewIntegrationStore creates a store that starts disconnected
func NewIntegrationStore(source IntegrationSource, log logger.Logger) *IntegrationStore {
	if log == nil {
		log = logger.Nop()
	}
	return &IntegrationStore{
		source: source,
		log:    log.WithComponent("integration-store"),
		status: NewSurface("integration", domain.IntegrationStatus{}),
	}
}

// Status exposes the integration status surface
func (s *IntegrationStore) Status() *Surface[domain.IntegrationStatus] { return s.status }

// Connected reports whether repository browsing should be offered
func (s *IntegrationStore) Connected() bool {
	return s.status.Data().Connected
}

// FetchStatus reads the integration status. Any failure is treated as
// "not authenticated" rather than surfaced raw.
func (s *IntegrationStore) FetchStatus(ctx context.Context) {
	ctx, ticket := s.status.Begin(ctx)

	status, err := s.source.IntegrationStatus(ctx)
	if err != nil {
		failSurface(s.log, s.status, ticket, NotAuthenticatedMessage, err)
		return
	}
	s.status.Complete(ticket, *status)
}

// Remove disconnects the GitHub account
func (s *IntegrationStore) Remove(ctx context.Context) {
	ctx, ticket := s.status.Begin(ctx)

	if err := s.source.RemoveIntegration(ctx); err != nil {
		failSurface(s.log, s.status, ticket, "Failed to remove integration", err)
		return
	}
	if s.status.Complete(ticket, domain.IntegrationStatus{Connected: false}) {
		s.log.Infof("GitHub integration removed")
	}
}

// AuthURL is the full-page redirect that starts the GitHub OAuth flow
func (s *IntegrationStore) AuthURL() string {
	return s.source.AuthURL()
}
