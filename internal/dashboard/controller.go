// Package dashboard wires query state, the data store and the grid binder
// into the collection explorer.
package dashboard

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kurihiro0119/github-data-explorer/internal/columns"
	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	apperrors "github.com/kurihiro0119/github-data-explorer/internal/errors"
	"github.com/kurihiro0119/github-data-explorer/internal/grid"
	"github.com/kurihiro0119/github-data-explorer/internal/logger"
	"github.com/kurihiro0119/github-data-explorer/internal/query"
	"github.com/kurihiro0119/github-data-explorer/internal/store"
)

// ActorCollection is the relationships collection queried for actor links
const ActorCollection = "users"

// Controller handles the events of the explorer view
type Controller struct {
	store   *store.GridStore
	binder  *grid.Binder
	related *grid.Binder
	log     logger.Logger

	mu     sync.Mutex
	state  *query.State
	actor  string
	issue  *domain.IssueRef
	unsubs []func()
}

// NewController creates a controller drawing the page into main and actor
// lookups into related.
func NewController(gs *store.GridStore, main, related grid.Grid, opts columns.Options, pageSize int, log logger.Logger) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	c := &Controller{
		store: gs,
		log:   log.WithComponent("dashboard"),
		state: query.NewState(pageSize),
	}
	c.binder = grid.NewBinder(main, opts, c, c, log)
	c.related = grid.NewBinder(related, opts, nil, nil, log)

	c.unsubs = append(c.unsubs, gs.Page().Subscribe(c.onPage))
	return c
}

// Close detaches the controller from the store
func (c *Controller) Close() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

// Binder returns the binder of the main grid
func (c *Controller) Binder() *grid.Binder { return c.binder }

// Related returns the binder of the related-records grid
func (c *Controller) Related() *grid.Binder { return c.related }

// Store returns the underlying data store
func (c *Controller) Store() *store.GridStore { return c.store }

func (c *Controller) onPage(snap store.Snapshot[store.PageState]) {
	if snap.Status != store.StatusReady && snap.Status != store.StatusIdle {
		return
	}
	if err := c.binder.Load(snap.Data.Result, snap.Data.Query.CollectionName); err != nil {
		c.log.WithError(err).Warnf("failed to bind page")
	}
}

// Init loads the collections and opens the first one
func (c *Controller) Init(ctx context.Context) error {
	c.store.FetchCollections(ctx)
	snap := c.store.Collections().Snapshot()
	if err := snap.Err(); err != nil {
		return err
	}
	if len(snap.Data) == 0 {
		c.log.Infof("backend has no collections")
		return nil
	}
	return c.SelectCollection(ctx, snap.Data[0].Name)
}

// SelectCollection opens a collection on page 1 with no facets
func (c *Controller) SelectCollection(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.NewBadRequestError("collection name is required")
	}
	return c.change(ctx, func(s *query.State) {
		s.SetCollection(name)
		s.SetSearchTerm("")
	})
}

// Selection is a complete set of browsing filters
type Selection struct {
	Collection string
	Facets     map[string]string
	Start      *time.Time
	End        *time.Time
	Page       int
	PageSize   int
}

// Browse opens a collection with every filter of sel applied at once. Zero
// Page and PageSize keep page 1 and the current page size.
func (c *Controller) Browse(ctx context.Context, sel Selection) error {
	if strings.TrimSpace(sel.Collection) == "" {
		return apperrors.NewBadRequestError("collection name is required")
	}
	if sel.Start != nil && sel.End != nil && sel.End.Before(*sel.Start) {
		return apperrors.NewBadRequestError("date range end is before its start")
	}
	if sel.PageSize < 0 {
		return apperrors.NewBadRequestError("page size must be positive")
	}
	return c.change(ctx, func(s *query.State) {
		s.SetCollection(sel.Collection)
		s.SetSearchTerm("")
		for name, value := range sel.Facets {
			s.SetFacet(name, value)
		}
		s.SetDateRange(sel.Start, sel.End)
		if sel.PageSize > 0 {
			s.SetPageSize(sel.PageSize)
		}
		s.SetPage(sel.Page)
	})
}

// SetFacet filters the collection by one facet value
func (c *Controller) SetFacet(ctx context.Context, name, value string) error {
	return c.change(ctx, func(s *query.State) { s.SetFacet(name, value) })
}

// ClearFacet drops one facet filter
func (c *Controller) ClearFacet(ctx context.Context, name string) error {
	return c.change(ctx, func(s *query.State) { s.ClearFacet(name) })
}

// SetDateRange filters the collection by date; nil bounds are open
func (c *Controller) SetDateRange(ctx context.Context, start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return apperrors.NewBadRequestError("date range end is before its start")
	}
	return c.change(ctx, func(s *query.State) { s.SetDateRange(start, end) })
}

// SetPageSize changes the page size and returns to page 1
func (c *Controller) SetPageSize(ctx context.Context, size int) error {
	if size < 1 {
		return apperrors.NewBadRequestError("page size must be positive")
	}
	return c.change(ctx, func(s *query.State) { s.SetPageSize(size) })
}

// GoToPage jumps to a page of the current result
func (c *Controller) GoToPage(ctx context.Context, page int) error {
	c.mu.Lock()
	c.state.SetPage(page)
	c.mu.Unlock()
	return c.Reload(ctx)
}

// NextPage moves forward when a next page exists
func (c *Controller) NextPage(ctx context.Context) error {
	c.mu.Lock()
	moved := c.state.NextPage(c.store.TotalPages())
	c.mu.Unlock()
	if !moved {
		return nil
	}
	return c.Reload(ctx)
}

// PrevPage moves back when not on page 1
func (c *Controller) PrevPage(ctx context.Context) error {
	c.mu.Lock()
	moved := c.state.PrevPage()
	c.mu.Unlock()
	if !moved {
		return nil
	}
	return c.Reload(ctx)
}

// HasNext reports whether the Next control is enabled
func (c *Controller) HasNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Page() < c.store.TotalPages()
}

// HasPrev reports whether the Previous control is enabled
func (c *Controller) HasPrev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Page() > 1
}

// Reload fetches the current page again
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	q := c.state.ComposeQuery()
	c.mu.Unlock()

	if q.CollectionName == "" {
		return nil
	}
	c.store.FetchCollectionData(ctx, q)
	return c.store.Page().Snapshot().Err()
}

// Search runs a keyword search across every collection. The page view is
// cleared while search results are shown; an empty keyword returns to the
// collection.
func (c *Controller) Search(ctx context.Context, keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return c.change(ctx, func(s *query.State) { s.SetSearchTerm("") })
	}

	c.mu.Lock()
	c.state.SetSearchTerm(keyword)
	c.mu.Unlock()

	c.store.SearchAcrossAllCollections(ctx, keyword)
	return c.store.SearchResults().Snapshot().Err()
}

// Export downloads the current collection with the active filters
func (c *Controller) Export(ctx context.Context, format domain.ExportFormat) ([]byte, domain.ExportRequest, error) {
	c.mu.Lock()
	req := c.state.ExportRequest(format)
	c.mu.Unlock()

	if req.CollectionName == "" {
		return nil, req, apperrors.NewBadRequestError("no collection selected")
	}
	data, err := c.store.ExportData(ctx, req)
	return data, req, err
}

// HandleGridEvent forwards a main grid event to the binder
func (c *Controller) HandleGridEvent(ctx context.Context, ev grid.Event) {
	c.binder.HandleEvent(ctx, ev)
}

// ClickCell clicks the cell of field in the bound row at index
func (c *Controller) ClickCell(ctx context.Context, index int, field string) error {
	row := c.binder.RowAt(index)
	if row == nil {
		return apperrors.NewNotFoundError("row")
	}
	return c.binder.CellClicked(ctx, row, field)
}

// DragRow drops the bound row at from onto the row at over
func (c *Controller) DragRow(from, over int) error {
	row, target := c.binder.RowAt(from), c.binder.RowAt(over)
	if row == nil || target == nil {
		return apperrors.NewNotFoundError("row")
	}
	return c.binder.RowDragEnd(row, target)
}

// RowDetail returns the raw JSON detail panel of the bound row at index
func (c *Controller) RowDetail(index int) (string, error) {
	row := c.binder.RowAt(index)
	if row == nil {
		return "", apperrors.NewNotFoundError("row")
	}
	return c.binder.Detail(row)
}

// LookupActor shows the records related to actor in the related grid
func (c *Controller) LookupActor(ctx context.Context, actor string) error {
	c.mu.Lock()
	c.actor = actor
	c.mu.Unlock()

	related, err := c.store.ItemRelationships(ctx, ActorCollection, actor)
	if err != nil {
		return err
	}
	rows, fields := relatedRows(related)
	if len(fields) > 0 {
		return c.related.LoadFields(rows, fields)
	}
	return c.related.Load(domain.DataGridResult{Records: rows, Total: len(rows), Page: 1, PageSize: len(rows)}, ActorCollection)
}

// NavigateToIssue opens the detail view of an issue
func (c *Controller) NavigateToIssue(ctx context.Context, ref domain.IssueRef) error {
	c.mu.Lock()
	c.issue = &ref
	c.mu.Unlock()

	c.log.Debugf("navigating to issue %s", ref)
	c.store.FetchIssueDetails(ctx, ref)
	return c.store.Issue().Snapshot().Err()
}

// OpenIssue is NavigateToIssue driven by navigation parameters
func (c *Controller) OpenIssue(ctx context.Context, params url.Values) error {
	ref, err := domain.ParseIssueRef(params)
	if err != nil {
		return apperrors.NewBadRequestError(err.Error())
	}
	return c.NavigateToIssue(ctx, ref)
}

// change applies a filter mutation, drops search results and reloads
func (c *Controller) change(ctx context.Context, mutate func(s *query.State)) error {
	c.mu.Lock()
	mutate(c.state)
	c.mu.Unlock()

	c.store.ClearSearchResults()
	return c.Reload(ctx)
}

// relatedRows reads a relationships payload. The backend answers either with
// {fields, records|data} or with a bare record or list of records.
func relatedRows(v domain.Value) ([]*domain.Record, []string) {
	if obj, ok := v.AsObject(); ok {
		fieldsVal, hasFields := obj.Get("fields")
		list, hasList := obj.Get("records")
		if !hasList {
			list, hasList = obj.Get("data")
		}
		if hasList {
			return recordsOf(list), stringsOf(fieldsVal, hasFields)
		}
		return []*domain.Record{obj}, nil
	}
	return recordsOf(v), nil
}

func recordsOf(v domain.Value) []*domain.Record {
	items, _ := v.AsArray()
	rows := make([]*domain.Record, 0, len(items))
	for _, item := range items {
		if obj, ok := item.AsObject(); ok {
			rows = append(rows, obj)
		}
	}
	return rows
}

func stringsOf(v domain.Value, ok bool) []string {
	if !ok {
		return nil
	}
	items, _ := v.AsArray()
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}
