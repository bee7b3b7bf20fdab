package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-github/v55/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
)

func newRepo(id, org, name string, included bool) domain.Repository {
	return domain.Repository{
		Repository:       &github.Repository{Name: github.String(name), FullName: github.String(org + "/" + name)},
		RecordID:         id,
		OrganizationName: org,
		Included:         included,
	}
}

func TestRepositoryStore_FetchOrganizations(t *testing.T) {
	src := &fakeSource{orgs: func(ctx context.Context) ([]domain.Organization, error) {
		return []domain.Organization{{ID: "o1", Name: "acme", Repositories: []domain.Repository{newRepo("r1", "acme", "widgets", false)}}}, nil
	}}
	s := NewRepositoryStore(src, nil)

	s.FetchOrganizations(context.Background())

	orgs := s.Organizations().Data()
	require.Len(t, orgs, 1)
	assert.Equal(t, "widgets", orgs[0].Repositories[0].GetName())
}

func TestRepositoryStore_FetchFailures(t *testing.T) {
	src := &fakeSource{
		orgs:  func(ctx context.Context) ([]domain.Organization, error) { return nil, fmt.Errorf("boom") },
		repos: func(ctx context.Context) ([]domain.Repository, error) { return nil, fmt.Errorf("boom") },
	}
	s := NewRepositoryStore(src, nil)

	s.FetchOrganizations(context.Background())
	s.FetchPublicRepositories(context.Background())

	assert.Equal(t, "Failed to fetch organizations", s.Organizations().Snapshot().Error)
	assert.Equal(t, "Unable to load repositories", s.Repositories().Snapshot().Error)
}

func TestRepositoryStore_SetInclusion(t *testing.T) {
	statsCalls := 0
	src := &fakeSource{
		repos: func(ctx context.Context) ([]domain.Repository, error) {
			return []domain.Repository{newRepo("r1", "acme", "widgets", false), newRepo("r2", "acme", "gadgets", false)}, nil
		},
		include: func(ctx context.Context, id string, included bool) (*domain.Repository, error) {
			repo := newRepo(id, "acme", map[string]string{"r1": "widgets", "r2": "gadgets"}[id], included)
			return &repo, nil
		},
		stats: func(ctx context.Context, org, repo string) (*domain.RepositoryStats, error) {
			statsCalls++
			require.NoError(t, ctx.Err(), "stats must not run on a cancelled context")
			return &domain.RepositoryStats{
				RepoName:     repo,
				Organization: org,
				UserStats:    []domain.UserStats{{User: "alice", TotalCommits: 3}},
			}, nil
		},
	}
	s := NewRepositoryStore(src, nil)
	s.FetchPublicRepositories(context.Background())
	repos := s.Repositories().Data()

	require.NoError(t, s.SetInclusion(context.Background(), repos[0], true))
	require.NoError(t, s.SetInclusion(context.Background(), repos[1], true))

	updated := s.Repositories().Data()
	assert.True(t, updated[0].Included)
	assert.True(t, updated[1].Included)
	assert.Equal(t, 2, statsCalls)

	stats := s.UserStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "widgets", stats[0].RepoName)
	assert.Equal(t, "gadgets", stats[1].RepoName)

	require.NoError(t, s.SetInclusion(context.Background(), updated[0], false))
	stats = s.UserStats()
	require.Len(t, stats, 1)
	assert.Equal(t, "gadgets", stats[0].RepoName)
	assert.False(t, s.Repositories().Data()[0].Included)
}

func TestRepositoryStore_SetInclusionFailure(t *testing.T) {
	src := &fakeSource{include: func(ctx context.Context, id string, included bool) (*domain.Repository, error) {
		return nil, fmt.Errorf("forbidden")
	}}
	s := NewRepositoryStore(src, nil)

	err := s.SetInclusion(context.Background(), newRepo("r1", "acme", "widgets", false), true)

	assert.Error(t, err)
	assert.Empty(t, s.UserStats())
}

func TestRepositoryStore_UserStatsErrors(t *testing.T) {
	src := &fakeSource{stats: func(ctx context.Context, org, repo string) (*domain.RepositoryStats, error) {
		if repo == "broken" {
			return nil, fmt.Errorf("boom")
		}
		return &domain.RepositoryStats{RepoName: repo, Organization: org}, nil
	}}
	s := NewRepositoryStore(src, nil)

	s.FetchUserStats(context.Background(), "acme", "widgets")
	s.FetchUserStats(context.Background(), "acme", "broken")

	assert.Len(t, s.UserStats(), 1)
	assert.Equal(t, map[string]string{"broken": "Failed to fetch user stats for acme/broken"}, s.UserStatsErrors())

	s.DropUserStats("broken")
	assert.Empty(t, s.UserStatsErrors())
}
