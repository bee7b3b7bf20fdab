package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DefaultPageSize is the page size used when none is configured
const DefaultPageSize = 100

// CollectionMetadata identifies a queryable dataset on the backend
type CollectionMetadata struct {
	Name           string   `json:"name"`
	TotalDocuments int      `json:"totalDocuments"`
	Fields         []string `json:"fields,omitempty"`
}

// FacetItem is one distinct value of a facet field and its frequency
type FacetItem struct {
	ID    string `json:"_id"`
	Count int    `json:"count"`
}

// UnmarshalJSON accepts non-string facet ids (numbers, booleans, null)
func (f *FacetItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    Value `json:"_id"`
		Count int   `json:"count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.ID = raw.ID.Text()
	f.Count = raw.Count
	return nil
}

// DataGridResult is one page of a collection
type DataGridResult struct {
	Records  []*Record              `json:"data"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"pageSize"`
	Facets   map[string][]FacetItem `json:"facets,omitempty"`
}

// EmptyResult returns the result shown before anything has been fetched
func EmptyResult(pageSize int) DataGridResult {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return DataGridResult{Records: []*Record{}, Page: 1, PageSize: pageSize}
}

// TotalPages returns ceil(Total / PageSize)
func (r DataGridResult) TotalPages() int {
	return TotalPages(r.Total, r.PageSize)
}

// TotalPages returns ceil(total / pageSize), or 0 when either is not positive
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// FacetNames returns the facet keys in sorted order
func (r DataGridResult) FacetNames() []string {
	names := make([]string, 0, len(r.Facets))
	for name := range r.Facets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DateRange is an optional start/end pair
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// IsZero reports whether neither bound is set
func (d DateRange) IsZero() bool {
	return d.Start == nil && d.End == nil
}

// Wire serializes the range as RFC 3339 UTC timestamps. It returns nil when
// no bound is set.
func (d DateRange) Wire() *WireDateRange {
	if d.IsZero() {
		return nil
	}
	w := &WireDateRange{}
	if d.Start != nil {
		w.Start = d.Start.UTC().Format(time.RFC3339Nano)
	}
	if d.End != nil {
		w.End = d.End.UTC().Format(time.RFC3339Nano)
	}
	return w
}

// WireDateRange is the JSON form of DateRange
type WireDateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// CollectionQuery is the request body of POST /collection-data
type CollectionQuery struct {
	CollectionName string            `json:"collectionName"`
	Page           int               `json:"page"`
	PageSize       int               `json:"pageSize"`
	Filters        map[string]string `json:"filters"`
	DateRange      *WireDateRange    `json:"dateRange,omitempty"`
}

// Key returns a stable identity for the query, used as a cache key
func (q CollectionQuery) Key() string {
	b, err := json.Marshal(q)
	if err != nil {
		return fmt.Sprintf("%s/%d/%d", q.CollectionName, q.Page, q.PageSize)
	}
	return string(b)
}

// SearchResult maps a collection name to the records that matched a keyword
type SearchResult map[string][]*Record

// Collections returns the collection names in sorted order
func (s SearchResult) Collections() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Total returns the number of matching records across all collections
func (s SearchResult) Total() int {
	n := 0
	for _, records := range s {
		n += len(records)
	}
	return n
}

// ExportFormat is the file format produced by POST /export-data
type ExportFormat string

const (
	ExportCSV   ExportFormat = "csv"
	ExportJSON  ExportFormat = "json"
	ExportExcel ExportFormat = "excel"
)

// ParseExportFormat validates a format name
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case ExportCSV, ExportJSON, ExportExcel:
		return ExportFormat(s), nil
	case "":
		return ExportCSV, nil
	}
	return "", fmt.Errorf("unsupported export format %q (want csv, json or excel)", s)
}

// Extension returns the file extension for the format
func (f ExportFormat) Extension() string {
	if f == ExportExcel {
		return ".xlsx"
	}
	return "." + string(f)
}

// ExportRequest is the request body of POST /export-data
type ExportRequest struct {
	CollectionName string            `json:"collectionName"`
	Format         ExportFormat      `json:"exportFormat"`
	DateRange      *WireDateRange    `json:"dateRange,omitempty"`
	SelectedFacets map[string]string `json:"selectedFacets,omitempty"`
	SearchTerm     string            `json:"searchTerm,omitempty"`
}
