package aggregator

import (
	"context"
	"sort"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	apperrors "github.com/kurihiro0119/github-data-explorer/internal/errors"
	"github.com/kurihiro0119/github-data-explorer/internal/storage"
)

// Summary is the per-user activity across several tracked repositories
type Summary struct {
	Repositories []string           `json:"repositories"`
	Users        []domain.UserStats `json:"users"`
	Totals       domain.UserStats   `json:"totals"`
}

// Aggregator defines the interface for combining repository stats
type Aggregator interface {
	// AggregateUserStats sums per-user counts over the given repositories
	AggregateUserStats(stats []domain.RepositoryStats) *Summary

	// AggregateCached sums every repository stats entry in the cache
	AggregateCached(ctx context.Context) (*Summary, error)
}

// aggregator implements the Aggregator interface
type aggregator struct {
	storage storage.Storage
}

// NewAggregator creates a new aggregator. storage may be nil when no cache is
// configured; AggregateCached then fails.
func NewAggregator(storage storage.Storage) Aggregator {
	return &aggregator{
		storage: storage,
	}
}

// AggregateUserStats sums per-user counts. Users are ordered by commits, then
// pull requests, then login.
func (a *aggregator) AggregateUserStats(stats []domain.RepositoryStats) *Summary {
	byUser := make(map[string]*domain.UserStats)
	summary := &Summary{Repositories: []string{}, Users: []domain.UserStats{}, Totals: domain.UserStats{User: "total"}}

	for _, repo := range stats {
		name := repo.RepoName
		if repo.Organization != "" {
			name = repo.Organization + "/" + repo.RepoName
		}
		summary.Repositories = append(summary.Repositories, name)

		for _, us := range repo.UserStats {
			acc, ok := byUser[us.User]
			if !ok {
				acc = &domain.UserStats{User: us.User}
				byUser[us.User] = acc
			}
			acc.TotalCommits += us.TotalCommits
			acc.TotalPullRequests += us.TotalPullRequests
			acc.TotalIssues += us.TotalIssues

			summary.Totals.TotalCommits += us.TotalCommits
			summary.Totals.TotalPullRequests += us.TotalPullRequests
			summary.Totals.TotalIssues += us.TotalIssues
		}
	}

	for _, acc := range byUser {
		summary.Users = append(summary.Users, *acc)
	}
	sort.Slice(summary.Users, func(i, j int) bool {
		ui, uj := summary.Users[i], summary.Users[j]
		if ui.TotalCommits != uj.TotalCommits {
			return ui.TotalCommits > uj.TotalCommits
		}
		if ui.TotalPullRequests != uj.TotalPullRequests {
			return ui.TotalPullRequests > uj.TotalPullRequests
		}
		return ui.User < uj.User
	})
	sort.Strings(summary.Repositories)

	return summary
}

// AggregateCached sums every repository stats entry in the cache
func (a *aggregator) AggregateCached(ctx context.Context) (*Summary, error) {
	if a.storage == nil {
		return nil, apperrors.NewBadRequestError("no cache configured")
	}
	cached, err := a.storage.ListRepositoryStats(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]domain.RepositoryStats, 0, len(cached))
	for _, s := range cached {
		stats = append(stats, *s)
	}
	return a.AggregateUserStats(stats), nil
}
