package storage

import (
	"context"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
)

// Storage is the abstract interface for the local page cache
type Storage interface {
	// Collection list
	SaveCollections(ctx context.Context, collections []domain.CollectionMetadata) error
	GetCollections(ctx context.Context) ([]domain.CollectionMetadata, error)

	// Pages, keyed by the full query that produced them
	SavePage(ctx context.Context, q domain.CollectionQuery, result *domain.DataGridResult) error
	GetPage(ctx context.Context, q domain.CollectionQuery) (*domain.DataGridResult, error)

	// Per-user stats of tracked repositories
	SaveRepositoryStats(ctx context.Context, stats *domain.RepositoryStats) error
	GetRepositoryStats(ctx context.Context, org, repo string) (*domain.RepositoryStats, error)
	ListRepositoryStats(ctx context.Context) ([]*domain.RepositoryStats, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
