package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	"github.com/kurihiro0119/github-data-explorer/internal/logger"
)

// RepositoryStore holds organizations, tracked repositories and the per-user
// stats of every repository selected for tracking.
type RepositoryStore struct {
	source RepositorySource
	log    logger.Logger

	organizations *Surface[[]domain.Organization]
	repositories  *Surface[[]domain.Repository]

	mu        sync.Mutex
	statOrder []string
	stats     map[string]*Surface[*domain.RepositoryStats]
}

// NewRepositoryStore creates an empty repository store
func NewRepositoryStore(source RepositorySource, log logger.Logger) *RepositoryStore {
	if log == nil {
		log = logger.Nop()
	}
	return &RepositoryStore{
		source:        source,
		log:           log.WithComponent("repository-store"),
		organizations: NewSurface("organizations", []domain.Organization{}),
		repositories:  NewSurface("repositories", []domain.Repository{}),
		stats:         make(map[string]*Surface[*domain.RepositoryStats]),
	}
}

// Organizations exposes the organizations surface
func (s *RepositoryStore) Organizations() *Surface[[]domain.Organization] { return s.organizations }

// Repositories exposes the repositories surface
func (s *RepositoryStore) Repositories() *Surface[[]domain.Repository] { return s.repositories }

// FetchOrganizations loads organizations with their nested repositories
func (s *RepositoryStore) FetchOrganizations(ctx context.Context) {
	ctx, ticket := s.organizations.Begin(ctx)

	orgs, err := s.source.Organizations(ctx)
	if err != nil {
		failSurface(s.log, s.organizations, ticket, "Failed to fetch organizations", err)
		return
	}
	if orgs == nil {
		orgs = []domain.Organization{}
	}
	s.organizations.Complete(ticket, orgs)
}

// FetchPublicRepositories loads the repositories of the connected account
func (s *RepositoryStore) FetchPublicRepositories(ctx context.Context) {
	ctx, ticket := s.repositories.Begin(ctx)

	repos, err := s.source.PublicRepositories(ctx)
	if err != nil {
		failSurface(s.log, s.repositories, ticket, "Unable to load repositories", err)
		return
	}
	if repos == nil {
		repos = []domain.Repository{}
	}
	s.repositories.Complete(ticket, repos)
}

// SetInclusion toggles whether a repository is tracked. Including a
// repository loads its user stats; excluding it drops them.
func (s *RepositoryStore) SetInclusion(ctx context.Context, repo domain.Repository, included bool) error {
	updated, err := s.source.SetRepositoryInclusion(ctx, repo.RecordID, included)
	if err != nil {
		s.log.WithError(err).Errorf("failed to update repository %s", repo.GetFullName())
		return err
	}
	if updated == nil {
		updated = &repo
		updated.Included = included
	}

	_, ticket := s.repositories.Begin(ctx)
	s.repositories.Update(ticket, func(current []domain.Repository) []domain.Repository {
		out := make([]domain.Repository, len(current))
		copy(out, current)
		for i := range out {
			if out[i].RecordID == repo.RecordID {
				out[i] = *updated
			}
		}
		return out
	})

	org := updated.OrganizationName
	if org == "" {
		org = repo.OrganizationName
	}
	if included {
		s.FetchUserStats(ctx, org, updated.GetName())
	} else {
		s.DropUserStats(updated.GetName())
	}
	return nil
}

// FetchUserStats loads per-user stats for one repository. Each repository is
// its own surface so loading several at once does not discard any of them.
func (s *RepositoryStore) FetchUserStats(ctx context.Context, org, repo string) {
	surface := s.statsSurface(repo)
	ctx, ticket := surface.Begin(ctx)

	stats, err := s.source.RepositoryStats(ctx, org, repo)
	if err != nil {
		failSurface(s.log, surface, ticket, fmt.Sprintf("Failed to fetch user stats for %s/%s", org, repo), err)
		return
	}
	surface.Complete(ticket, stats)
}

// DropUserStats forgets the stats of a repository
func (s *RepositoryStore) DropUserStats(repo string) {
	s.mu.Lock()
	surface, ok := s.stats[repo]
	if ok {
		delete(s.stats, repo)
		for i, name := range s.statOrder {
			if name == repo {
				s.statOrder = append(s.statOrder[:i], s.statOrder[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if ok {
		surface.Reset(nil)
	}
}

// UserStats returns the loaded stats in the order repositories were selected
func (s *RepositoryStore) UserStats() []domain.RepositoryStats {
	s.mu.Lock()
	surfaces := make([]*Surface[*domain.RepositoryStats], 0, len(s.statOrder))
	for _, name := range s.statOrder {
		surfaces = append(surfaces, s.stats[name])
	}
	s.mu.Unlock()

	out := []domain.RepositoryStats{}
	for _, surface := range surfaces {
		if stats := surface.Data(); stats != nil {
			out = append(out, *stats)
		}
	}
	return out
}

// UserStatsErrors returns the error message per repository whose stats failed
func (s *RepositoryStore) UserStatsErrors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string]string{}
	for name, surface := range s.stats {
		if snap := surface.Snapshot(); snap.Status == StatusError {
			out[name] = snap.Error
		}
	}
	return out
}

func (s *RepositoryStore) statsSurface(repo string) *Surface[*domain.RepositoryStats] {
	s.mu.Lock()
	defer s.mu.Unlock()

	surface, ok := s.stats[repo]
	if !ok {
		surface = NewSurface[*domain.RepositoryStats]("stats:"+repo, nil)
		s.stats[repo] = surface
		s.statOrder = append(s.statOrder, repo)
	}
	return surface
}
