package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
)

// fakeSource implements every source interface with overridable funcs
type fakeSource struct {
	collections   func(ctx context.Context) ([]domain.CollectionMetadata, error)
	page          func(ctx context.Context, q domain.CollectionQuery) (*domain.DataGridResult, error)
	search        func(ctx context.Context, keyword string) (domain.SearchResult, error)
	relationships func(ctx context.Context, collection, id string) (domain.Value, error)
	export        func(ctx context.Context, req domain.ExportRequest) ([]byte, error)
	issue         func(ctx context.Context, ref domain.IssueRef) (*domain.IssueDetails, error)
	status        func(ctx context.Context) (*domain.IntegrationStatus, error)
	remove        func(ctx context.Context) error
	orgs          func(ctx context.Context) ([]domain.Organization, error)
	repos         func(ctx context.Context) ([]domain.Repository, error)
	include       func(ctx context.Context, id string, included bool) (*domain.Repository, error)
	stats         func(ctx context.Context, org, repo string) (*domain.RepositoryStats, error)
}

func (f *fakeSource) ListCollections(ctx context.Context) ([]domain.CollectionMetadata, error) {
	return f.collections(ctx)
}

func (f *fakeSource) FetchCollectionData(ctx context.Context, q domain.CollectionQuery) (*domain.DataGridResult, error) {
	return f.page(ctx, q)
}

func (f *fakeSource) Search(ctx context.Context, keyword string) (domain.SearchResult, error) {
	return f.search(ctx, keyword)
}

func (f *fakeSource) Relationships(ctx context.Context, collection, id string) (domain.Value, error) {
	return f.relationships(ctx, collection, id)
}

func (f *fakeSource) Export(ctx context.Context, req domain.ExportRequest) ([]byte, error) {
	return f.export(ctx, req)
}

func (f *fakeSource) IssueDetails(ctx context.Context, ref domain.IssueRef) (*domain.IssueDetails, error) {
	return f.issue(ctx, ref)
}

func (f *fakeSource) IntegrationStatus(ctx context.Context) (*domain.IntegrationStatus, error) {
	return f.status(ctx)
}

func (f *fakeSource) RemoveIntegration(ctx context.Context) error {
	return f.remove(ctx)
}

func (f *fakeSource) AuthURL() string {
	return "http://backend/auth/github"
}

func (f *fakeSource) Organizations(ctx context.Context) ([]domain.Organization, error) {
	return f.orgs(ctx)
}

func (f *fakeSource) PublicRepositories(ctx context.Context) ([]domain.Repository, error) {
	return f.repos(ctx)
}

func (f *fakeSource) SetRepositoryInclusion(ctx context.Context, id string, included bool) (*domain.Repository, error) {
	return f.include(ctx, id, included)
}

func (f *fakeSource) RepositoryStats(ctx context.Context, org, repo string) (*domain.RepositoryStats, error) {
	return f.stats(ctx, org, repo)
}

func records(t *testing.T, raws ...string) []*domain.Record {
	t.Helper()
	out := make([]*domain.Record, len(raws))
	for i, raw := range raws {
		var r domain.Record
		require.NoError(t, json.Unmarshal([]byte(raw), &r))
		out[i] = &r
	}
	return out
}
