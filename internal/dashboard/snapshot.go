package dashboard

import (
	"github.com/kurihiro0119/github-data-explorer/internal/columns"
	"github.com/kurihiro0119/github-data-explorer/internal/domain"
)

// View is everything needed to draw the explorer at one point in time
type View struct {
	Collections    []domain.CollectionMetadata   `json:"collections"`
	Collection     string                        `json:"collection"`
	SearchTerm     string                        `json:"searchTerm,omitempty"`
	SelectedFacets map[string]string             `json:"selectedFacets"`
	DateRange      *domain.WireDateRange         `json:"dateRange,omitempty"`
	Facets         map[string][]domain.FacetItem `json:"facets"`

	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`

	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`

	Columns []columns.Definition `json:"columns"`
	Rows    []*domain.Record     `json:"rows"`
	Clicked *domain.Record       `json:"clicked,omitempty"`

	Search  *domain.SearchResult `json:"searchResults,omitempty"`
	Related *RelatedView         `json:"related,omitempty"`
	Issue   *IssueView           `json:"issue,omitempty"`
}

// RelatedView is the actor lookup grid
type RelatedView struct {
	Actor   string               `json:"actor"`
	Loading bool                 `json:"loading"`
	Error   string               `json:"error,omitempty"`
	Columns []columns.Definition `json:"columns"`
	Rows    []*domain.Record     `json:"rows"`
}

// IssueView is the issue detail screen
type IssueView struct {
	Ref     domain.IssueRef      `json:"ref"`
	Loading bool                 `json:"loading"`
	Error   string               `json:"error,omitempty"`
	Details *domain.IssueDetails `json:"details,omitempty"`
}

// Snapshot summarizes the controller state. The first error among the
// surfaces the view shows is reported in Error.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	v := View{
		Collection:     c.state.Collection(),
		SearchTerm:     c.state.SearchTerm(),
		SelectedFacets: c.state.SelectedFacets(),
		DateRange:      c.state.DateRange().Wire(),
		Page:           c.state.Page(),
		PageSize:       c.state.PageSize(),
	}
	actor := c.actor
	var ref *domain.IssueRef
	if c.issue != nil {
		r := *c.issue
		ref = &r
	}
	c.mu.Unlock()

	collections := c.store.Collections().Snapshot()
	page := c.store.Page().Snapshot()
	search := c.store.SearchResults().Snapshot()

	v.Collections = collections.Data
	v.Facets = page.Data.Facets
	v.Total = page.Data.Result.Total
	v.TotalPages = page.Data.TotalPages
	v.HasNext = v.Page < v.TotalPages
	v.HasPrev = v.Page > 1
	v.Loading = c.store.Loading()
	v.Error = firstError(collections.Error, page.Error, search.Error)
	v.Columns = c.binder.Columns()
	v.Rows = c.binder.Rows()
	v.Clicked = c.binder.Clicked()

	if search.Data != nil {
		results := search.Data
		v.Search = &results
	}

	if actor != "" {
		rel := c.store.Relationships().Snapshot()
		v.Related = &RelatedView{
			Actor:   actor,
			Loading: rel.Loading(),
			Error:   rel.Error,
			Columns: c.related.Columns(),
			Rows:    c.related.Rows(),
		}
	}

	if ref != nil {
		issue := c.store.Issue().Snapshot()
		v.Issue = &IssueView{
			Ref:     *ref,
			Loading: issue.Loading(),
			Error:   issue.Error,
			Details: issue.Data,
		}
	}
	return v
}

func firstError(messages ...string) string {
	for _, m := range messages {
		if m != "" {
			return m
		}
	}
	return ""
}
