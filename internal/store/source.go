package store

import (
	"context"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
)

// DataSource is the backend consumed by GridStore
type DataSource interface {
	ListCollections(ctx context.Context) ([]domain.CollectionMetadata, error)
	FetchCollectionData(ctx context.Context, q domain.CollectionQuery) (*domain.DataGridResult, error)
	Search(ctx context.Context, keyword string) (domain.SearchResult, error)
	Relationships(ctx context.Context, collection, id string) (domain.Value, error)
	Export(ctx context.Context, req domain.ExportRequest) ([]byte, error)
	IssueDetails(ctx context.Context, ref domain.IssueRef) (*domain.IssueDetails, error)
}

// IntegrationSource is the backend consumed by IntegrationStore
type IntegrationSource interface {
	IntegrationStatus(ctx context.Context) (*domain.IntegrationStatus, error)
	RemoveIntegration(ctx context.Context) error
	AuthURL() string
}

// RepositorySource is the backend consumed by RepositoryStore
type RepositorySource interface {
	Organizations(ctx context.Context) ([]domain.Organization, error)
	PublicRepositories(ctx context.Context) ([]domain.Repository, error)
	SetRepositoryInclusion(ctx context.Context, id string, included bool) (*domain.Repository, error)
	RepositoryStats(ctx context.Context, org, repo string) (*domain.RepositoryStats, error)
}
