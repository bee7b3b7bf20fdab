package storage

import (
	"context"
	"fmt"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	apperrors "github.com/kurihiro0119/github-data-explorer/internal/errors"
	"github.com/kurihiro0119/github-data-explorer/internal/logger"
	"github.com/kurihiro0119/github-data-explorer/internal/store"
)

// Upstream is the live backend behind the cache
type Upstream interface {
	store.DataSource
	store.RepositorySource
}

// CachingSource writes every successful collection, page and stats response
// to the cache. In offline mode those reads are served from the cache and
// every other call fails without touching the network.
type CachingSource struct {
	upstream Upstream
	cache    Storage
	offline  bool
	log      logger.Logger
}

// NewCachingSource decorates upstream with cache
func NewCachingSource(upstream Upstream, cache Storage, offline bool, log logger.Logger) *CachingSource {
	if log == nil {
		log = logger.Nop()
	}
	return &CachingSource{
		upstream: upstream,
		cache:    cache,
		offline:  offline,
		log:      log.WithComponent("cache"),
	}
}

// Offline reports whether calls are served from the cache only
func (c *CachingSource) Offline() bool { return c.offline }

// ListCollections implements store.DataSource
func (c *CachingSource) ListCollections(ctx context.Context) ([]domain.CollectionMetadata, error) {
	if c.offline {
		return c.cache.GetCollections(ctx)
	}
	collections, err := c.upstream.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SaveCollections(ctx, collections); err != nil {
		c.log.WithError(err).Warnf("failed to cache collection list")
	}
	return collections, nil
}

// FetchCollectionData implements store.DataSource
func (c *CachingSource) FetchCollectionData(ctx context.Context, q domain.CollectionQuery) (*domain.DataGridResult, error) {
	if c.offline {
		return c.cache.GetPage(ctx, q)
	}
	result, err := c.upstream.FetchCollectionData(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SavePage(ctx, q, result); err != nil {
		c.log.WithError(err).Warnf("failed to cache page %d of %s", q.Page, q.CollectionName)
	}
	return result, nil
}

// Search implements store.DataSource
func (c *CachingSource) Search(ctx context.Context, keyword string) (domain.SearchResult, error) {
	if c.offline {
		return nil, offlineError("search")
	}
	return c.upstream.Search(ctx, keyword)
}

// Relationships implements store.DataSource
func (c *CachingSource) Relationships(ctx context.Context, collection, id string) (domain.Value, error) {
	if c.offline {
		return domain.Null(), offlineError("relationship lookup")
	}
	return c.upstream.Relationships(ctx, collection, id)
}

// Export implements store.DataSource
func (c *CachingSource) Export(ctx context.Context, req domain.ExportRequest) ([]byte, error) {
	if c.offline {
		return nil, offlineError("export")
	}
	return c.upstream.Export(ctx, req)
}

// IssueDetails implements store.DataSource
func (c *CachingSource) IssueDetails(ctx context.Context, ref domain.IssueRef) (*domain.IssueDetails, error) {
	if c.offline {
		return nil, offlineError("issue details")
	}
	return c.upstream.IssueDetails(ctx, ref)
}

// Organizations implements store.RepositorySource
func (c *CachingSource) Organizations(ctx context.Context) ([]domain.Organization, error) {
	if c.offline {
		return nil, offlineError("organization list")
	}
	return c.upstream.Organizations(ctx)
}

// PublicRepositories implements store.RepositorySource
func (c *CachingSource) PublicRepositories(ctx context.Context) ([]domain.Repository, error) {
	if c.offline {
		return nil, offlineError("repository list")
	}
	return c.upstream.PublicRepositories(ctx)
}

// SetRepositoryInclusion implements store.RepositorySource
func (c *CachingSource) SetRepositoryInclusion(ctx context.Context, id string, included bool) (*domain.Repository, error) {
	if c.offline {
		return nil, offlineError("repository update")
	}
	return c.upstream.SetRepositoryInclusion(ctx, id, included)
}

// RepositoryStats implements store.RepositorySource
func (c *CachingSource) RepositoryStats(ctx context.Context, org, repo string) (*domain.RepositoryStats, error) {
	if c.offline {
		return c.cache.GetRepositoryStats(ctx, org, repo)
	}
	stats, err := c.upstream.RepositoryStats(ctx, org, repo)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SaveRepositoryStats(ctx, stats); err != nil {
		c.log.WithError(err).Warnf("failed to cache stats of %s/%s", org, repo)
	}
	return stats, nil
}

// CachedStats returns every repository stats entry in the cache
func (c *CachingSource) CachedStats(ctx context.Context) ([]*domain.RepositoryStats, error) {
	return c.cache.ListRepositoryStats(ctx)
}

func offlineError(what string) error {
	return apperrors.NewNetworkError(fmt.Sprintf("%s is not available offline", what), nil)
}
