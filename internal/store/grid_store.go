package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	"github.com/kurihiro0119/github-data-explorer/internal/logger"
)

// PageState is the current page of the active collection
type PageState struct {
	Result     domain.DataGridResult         `json:"result"`
	Query      domain.CollectionQuery        `json:"query"`
	TotalPages int                           `json:"totalPages"`
	Facets     map[string][]domain.FacetItem `json:"facets"`
}

// ExportState describes the last finished export
type ExportState struct {
	Request domain.ExportRequest `json:"request"`
	Size    int                  `json:"size"`
}

// GridStore owns all server data shown by the collection grid
type GridStore struct {
	source   DataSource
	log      logger.Logger
	pageSize int

	collections   *Surface[[]domain.CollectionMetadata]
	page          *Surface[PageState]
	search        *Surface[domain.SearchResult]
	relationships *Surface[domain.Value]
	issue         *Surface[*domain.IssueDetails]
	exports       *Surface[ExportState]
}

// NewGridStore creates a store with empty surfaces
func NewGridStore(source DataSource, log logger.Logger, pageSize int) *GridStore {
	if log == nil {
		log = logger.Nop()
	}
	if pageSize < 1 {
		pageSize = domain.DefaultPageSize
	}
	return &GridStore{
		source:        source,
		log:           log.WithComponent("grid-store"),
		pageSize:      pageSize,
		collections:   NewSurface("collections", []domain.CollectionMetadata{}),
		page:          NewSurface("page", emptyPage(pageSize)),
		search:        NewSurface[domain.SearchResult]("search", nil),
		relationships: NewSurface("relationships", domain.Null()),
		issue:         NewSurface[*domain.IssueDetails]("issue", nil),
		exports:       NewSurface("exports", ExportState{}),
	}
}

func emptyPage(pageSize int) PageState {
	return PageState{
		Result: domain.EmptyResult(pageSize),
		Facets: map[string][]domain.FacetItem{},
	}
}

// Collections exposes the collections list surface
func (s *GridStore) Collections() *Surface[[]domain.CollectionMetadata] { return s.collections }

// Page exposes the current page surface
func (s *GridStore) Page() *Surface[PageState] { return s.page }

// SearchResults exposes the cross-collection search surface
func (s *GridStore) SearchResults() *Surface[domain.SearchResult] { return s.search }

// Relationships exposes the related-records surface
func (s *GridStore) Relationships() *Surface[domain.Value] { return s.relationships }

// Issue exposes the issue detail surface
func (s *GridStore) Issue() *Surface[*domain.IssueDetails] { return s.issue }

// Exports exposes the export surface
func (s *GridStore) Exports() *Surface[ExportState] { return s.exports }

// TotalPages returns the page count of the current result
func (s *GridStore) TotalPages() int {
	return s.page.Data().TotalPages
}

// Loading reports whether any surface has a request in flight
func (s *GridStore) Loading() bool {
	return s.collections.Snapshot().Loading() ||
		s.page.Snapshot().Loading() ||
		s.search.Snapshot().Loading() ||
		s.relationships.Snapshot().Loading() ||
		s.issue.Snapshot().Loading() ||
		s.exports.Snapshot().Loading()
}

// FetchCollections loads the list of queryable collections
func (s *GridStore) FetchCollections(ctx context.Context) {
	ctx, ticket := s.collections.Begin(ctx)

	collections, err := s.source.ListCollections(ctx)
	if err != nil {
		failSurface(s.log, s.collections, ticket, "Failed to fetch GitHub collections", err)
		return
	}
	if collections == nil {
		collections = []domain.CollectionMetadata{}
	}
	if s.collections.Complete(ticket, collections) {
		s.log.Debugf("fetched %d collections", len(collections))
	}
}

// FetchCollectionData loads one page of a collection
func (s *GridStore) FetchCollectionData(ctx context.Context, q domain.CollectionQuery) {
	ctx, ticket := s.page.Begin(ctx)

	result, err := s.source.FetchCollectionData(ctx, q)
	if err != nil {
		failSurface(s.log, s.page, ticket, fmt.Sprintf("Failed to fetch data for collection: %s", q.CollectionName), err)
		return
	}

	applied := s.page.Update(ticket, func(current PageState) PageState {
		next := PageState{Result: *result, Query: q, Facets: current.Facets}
		if next.Result.Records == nil {
			next.Result.Records = []*domain.Record{}
		}
		if result.Facets != nil {
			next.Facets = result.Facets
		}
		pageSize := q.PageSize
		if pageSize < 1 {
			pageSize = result.PageSize
		}
		next.TotalPages = domain.TotalPages(result.Total, pageSize)
		return next
	})
	if applied {
		s.log.Debugf("fetched %d records of %s (page %d, total %d)", len(result.Records), q.CollectionName, q.Page, result.Total)
	}
}

// SearchAcrossAllCollections runs a keyword search over every collection.
// The single-collection page view is cleared first.
func (s *GridStore) SearchAcrossAllCollections(ctx context.Context, keyword string) {
	s.search.Reset(nil)
	s.page.Reset(emptyPage(s.pageSize))

	ctx, ticket := s.search.Begin(ctx)
	result, err := s.source.Search(ctx, keyword)
	if err != nil {
		failSurface(s.log, s.search, ticket, "Search across collections failed", err)
		return
	}
	if result == nil {
		result = domain.SearchResult{}
	}
	if s.search.Complete(ticket, result) {
		s.log.Debugf("search %q matched %d records", keyword, result.Total())
	}
}

// ItemRelationships fetches the records related to one item
func (s *GridStore) ItemRelationships(ctx context.Context, collection, id string) (domain.Value, error) {
	ctx, ticket := s.relationships.Begin(ctx)

	related, err := s.source.Relationships(ctx, collection, id)
	if err != nil {
		failSurface(s.log, s.relationships, ticket, "Failed to fetch item relationships", err)
		return domain.Null(), err
	}
	s.relationships.Complete(ticket, related)
	return related, nil
}

// ExportData downloads the collection in the requested format
func (s *GridStore) ExportData(ctx context.Context, req domain.ExportRequest) ([]byte, error) {
	ctx, ticket := s.exports.Begin(ctx)

	data, err := s.source.Export(ctx, req)
	if err != nil {
		failSurface(s.log, s.exports, ticket, "Data export failed", err)
		return nil, err
	}
	s.exports.Complete(ticket, ExportState{Request: req, Size: len(data)})
	return data, nil
}

// FetchIssueDetails loads the drill-down view of one issue
func (s *GridStore) FetchIssueDetails(ctx context.Context, ref domain.IssueRef) {
	ctx, ticket := s.issue.Begin(ctx)

	details, err := s.source.IssueDetails(ctx, ref)
	if err != nil {
		failSurface(s.log, s.issue, ticket, fmt.Sprintf("Failed to fetch details for issue %s", ref), err)
		return
	}
	s.issue.Complete(ticket, details)
}

// ResetFilters empties the page view and its facets
func (s *GridStore) ResetFilters() {
	s.page.Reset(emptyPage(s.pageSize))
}

// ClearSearchResults drops any cross-collection search results
func (s *GridStore) ClearSearchResults() {
	s.search.Reset(nil)
}

// failSurface logs a fetch failure and stores a readable message. Failures of
// superseded requests are dropped.
func failSurface[T any](log logger.Logger, surface *Surface[T], ticket Ticket, message string, err error) {
	l := log.WithFields(map[string]interface{}{"surface": surface.Name()}).WithError(err)
	if !surface.Fail(ticket, message) {
		if !errors.Is(err, context.Canceled) {
			l.Debugf("discarded failure of superseded request: %s", message)
		}
		return
	}
	l.Errorf("%s", message)
}
