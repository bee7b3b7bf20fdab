// Package query holds the filter and paging inputs of a collection grid and
// composes them into backend requests.
package query

import (
	"time"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
)

// State is the current filter state of one grid. Every filter change moves
// the page back to 1 so it never points past the newly filtered result set.
type State struct {
	collection     string
	searchTerm     string
	selectedFacets map[string]string
	dateRange      domain.DateRange
	page           int
	pageSize       int
}

// NewState creates a state on page 1
func NewState(pageSize int) *State {
	if pageSize < 1 {
		pageSize = domain.DefaultPageSize
	}
	return &State{
		selectedFacets: make(map[string]string),
		page:           1,
		pageSize:       pageSize,
	}
}

// Collection returns the active collection
func (s *State) Collection() string { return s.collection }

// SearchTerm returns the current free-text term
func (s *State) SearchTerm() string { return s.searchTerm }

// Page returns the current page
func (s *State) Page() int { return s.page }

// PageSize returns the current page size
func (s *State) PageSize() int { return s.pageSize }

// DateRange returns the current date range
func (s *State) DateRange() domain.DateRange { return s.dateRange }

// SelectedFacets returns a copy of the facet selections
func (s *State) SelectedFacets() map[string]string {
	out := make(map[string]string, len(s.selectedFacets))
	for k, v := range s.selectedFacets {
		out[k] = v
	}
	return out
}

// SetCollection switches the active collection. Facet selections belong to
// the previous collection and are dropped.
func (s *State) SetCollection(name string) {
	s.collection = name
	s.selectedFacets = make(map[string]string)
	s.page = 1
}

// SetSearchTerm updates the free-text term
func (s *State) SetSearchTerm(term string) {
	s.searchTerm = term
	s.page = 1
}

// SetFacet selects a value for a facet. An empty value clears the facet.
func (s *State) SetFacet(name, value string) {
	if value == "" {
		delete(s.selectedFacets, name)
	} else {
		s.selectedFacets[name] = value
	}
	s.page = 1
}

// ClearFacet removes a facet selection
func (s *State) ClearFacet(name string) {
	s.SetFacet(name, "")
}

// ClearFacets removes all facet selections
func (s *State) ClearFacets() {
	s.selectedFacets = make(map[string]string)
	s.page = 1
}

// SetDateRange updates the date range; nil leaves that bound open
func (s *State) SetDateRange(start, end *time.Time) {
	s.dateRange = domain.DateRange{Start: copyTime(start), End: copyTime(end)}
	s.page = 1
}

// SetPageSize changes the page size and returns to page 1
func (s *State) SetPageSize(size int) {
	if size < 1 {
		return
	}
	s.pageSize = size
	s.page = 1
}

// SetPage jumps to a page. Values below 1 are clamped to 1.
func (s *State) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	s.page = page
}

// NextPage advances when a later page exists
func (s *State) NextPage(totalPages int) bool {
	if s.page >= totalPages {
		return false
	}
	s.page++
	return true
}

// PrevPage steps back when not on the first page
func (s *State) PrevPage() bool {
	if s.page <= 1 {
		return false
	}
	s.page--
	return true
}

// ComposeQuery snapshots the state into a collection-data request
func (s *State) ComposeQuery() domain.CollectionQuery {
	return domain.CollectionQuery{
		CollectionName: s.collection,
		Page:           s.page,
		PageSize:       s.pageSize,
		Filters:        s.SelectedFacets(),
		DateRange:      s.dateRange.Wire(),
	}
}

// Options are the filters that travel with an export
type Options struct {
	DateRange      *domain.WireDateRange `json:"dateRange,omitempty"`
	SelectedFacets map[string]string     `json:"selectedFacets,omitempty"`
	SearchTerm     string                `json:"searchTerm,omitempty"`
}

// Options snapshots the export filter options
func (s *State) Options() Options {
	return Options{
		DateRange:      s.dateRange.Wire(),
		SelectedFacets: s.SelectedFacets(),
		SearchTerm:     s.searchTerm,
	}
}

// ExportRequest snapshots the filters into an export request
func (s *State) ExportRequest(format domain.ExportFormat) domain.ExportRequest {
	opts := s.Options()
	return domain.ExportRequest{
		CollectionName: s.collection,
		Format:         format,
		DateRange:      opts.DateRange,
		SelectedFacets: opts.SelectedFacets,
		SearchTerm:     opts.SearchTerm,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
