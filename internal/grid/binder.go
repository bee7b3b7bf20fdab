package grid

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Knetic/govaluate"

	"github.com/kurihiro0119/github-data-explorer/internal/columns"
	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	apperrors "github.com/kurihiro0119/github-data-explorer/internal/errors"
	"github.com/kurihiro0119/github-data-explorer/internal/logger"
	"github.com/kurihiro0119/github-data-explorer/internal/schema"
)

// Binder keeps a Grid in sync with the current page and turns grid events
// into lookups and navigation.
type Binder struct {
	grid   Grid
	opts   columns.Options
	nav    Navigator
	actors ActorLookup
	log    logger.Logger

	mu      sync.Mutex
	kind    string
	loaded  []*domain.Record
	rows    []*domain.Record
	cols    []columns.Definition
	clicked *domain.Record
	ready   bool
}

// NewBinder creates a binder and registers it as the grid's event handler.
// nav and actors may be nil, in which case link clicks only select the row.
func NewBinder(g Grid, opts columns.Options, nav Navigator, actors ActorLookup, log logger.Logger) *Binder {
	if log == nil {
		log = logger.Nop()
	}
	b := &Binder{
		grid:   g,
		opts:   opts,
		nav:    nav,
		actors: actors,
		log:    log.WithComponent("grid-binder"),
		rows:   []*domain.Record{},
		loaded: []*domain.Record{},
	}
	g.On(b.HandleEvent)
	return b
}

// Load binds a new page. Columns are rebuilt from the first row; an empty
// page keeps the previous columns.
func (b *Binder) Load(result domain.DataGridResult, kind string) error {
	rows := make([]*domain.Record, len(result.Records))
	copy(rows, result.Records)

	b.mu.Lock()
	b.kind = kind
	b.loaded = rows
	b.rows = append([]*domain.Record(nil), rows...)
	if len(rows) > 0 {
		b.cols = columns.Build(rows[0], kind, b.opts)
	}
	b.clicked = nil
	bound, cols := b.viewLocked()
	b.mu.Unlock()

	return b.grid.Bind(bound, cols)
}

// LoadFields binds rows whose columns come from an explicit field list
func (b *Binder) LoadFields(rows []*domain.Record, fields []string) error {
	b.mu.Lock()
	b.kind = ""
	b.loaded = append([]*domain.Record(nil), rows...)
	b.rows = append([]*domain.Record(nil), rows...)
	b.cols = columns.FromFieldList(fields)
	b.clicked = nil
	bound, cols := b.viewLocked()
	b.mu.Unlock()

	return b.grid.Bind(bound, cols)
}

// Rows returns the bound rows in display order
func (b *Binder) Rows() []*domain.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*domain.Record(nil), b.rows...)
}

// Columns returns the bound column definitions
func (b *Binder) Columns() []columns.Definition {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]columns.Definition(nil), b.cols...)
}

// Kind returns the collection the bound rows belong to
func (b *Binder) Kind() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.kind
}

// Ready reports whether the grid has signalled it is ready
func (b *Binder) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// RowAt returns the bound row at index, or nil
func (b *Binder) RowAt(index int) *domain.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.rows) {
		return nil
	}
	return b.rows[index]
}

// Clicked returns the last clicked row
func (b *Binder) Clicked() *domain.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clicked
}

// ClickedJSON returns the last clicked row as indented JSON, or "" when
// nothing is selected.
func (b *Binder) ClickedJSON() string {
	row := b.Clicked()
	if row == nil {
		return ""
	}
	out, err := row.Indent()
	if err != nil {
		return ""
	}
	return out
}

// Detail renders the raw JSON detail panel of a row
func (b *Binder) Detail(row *domain.Record) (string, error) {
	if row == nil {
		return "", apperrors.NewBadRequestError("no row selected")
	}
	return row.Indent()
}

// HandleEvent is the Handler registered on the grid. Failures of the
// triggered lookups are logged.
func (b *Binder) HandleEvent(ctx context.Context, ev Event) {
	var err error
	switch ev.Kind {
	case EventReady:
		b.mu.Lock()
		b.ready = true
		b.mu.Unlock()
		b.log.Debugf("grid ready")
	case EventCellClicked:
		err = b.CellClicked(ctx, ev.Row, ev.Field)
	case EventRowDragEnd:
		err = b.RowDragEnd(ev.Row, ev.Over)
	}
	if err != nil {
		b.log.WithError(err).Warnf("%s event failed", ev.Kind)
	}
}

// CellClicked selects row and dispatches the column's link action, if any.
// Rows that are not bound are ignored.
func (b *Binder) CellClicked(ctx context.Context, row *domain.Record, field string) error {
	b.mu.Lock()
	if indexOf(b.rows, row) < 0 {
		b.mu.Unlock()
		b.log.Debugf("click on unknown row ignored")
		return nil
	}
	b.clicked = row
	col, _ := columns.Find(b.cols, field)
	b.mu.Unlock()

	switch col.Action {
	case columns.ActionActorLookup:
		actor, _ := row.Lookup(field)
		if actor.Text() == "" || b.actors == nil {
			return nil
		}
		return b.actors.LookupActor(ctx, actor.Text())
	case columns.ActionIssueNavigation:
		ref, err := b.issueRef(row, field)
		if err != nil {
			return err
		}
		if b.nav == nil {
			return nil
		}
		return b.nav.NavigateToIssue(ctx, ref)
	}
	return nil
}

func (b *Binder) issueRef(row *domain.Record, field string) (domain.IssueRef, error) {
	numVal, _ := row.Lookup(field)
	num, ok := numVal.AsNumber()
	if !ok {
		// some exports store the number as a string
		s, _ := numVal.AsString()
		num = json.Number(s)
	}
	number, err := num.Int64()
	if err != nil {
		return domain.IssueRef{}, apperrors.NewBadRequestError(fmt.Sprintf("invalid issue number %q", numVal.Text()))
	}

	repoVal, _ := row.Lookup(b.opts.RepoField)
	org, repo, ok := domain.SplitRepoID(repoVal.Text())
	if !ok {
		return domain.IssueRef{}, apperrors.NewBadRequestError(fmt.Sprintf("invalid repository id %q", repoVal.Text()))
	}
	return domain.IssueRef{Number: int(number), Org: org, Repo: repo}, nil
}

// RowDragEnd moves row to the position of over and pushes an update
// transaction covering the moved span. Unknown rows are ignored.
func (b *Binder) RowDragEnd(row, over *domain.Record) error {
	b.mu.Lock()
	from := indexOf(b.rows, row)
	to := indexOf(b.rows, over)
	if from < 0 || to < 0 || from == to {
		b.mu.Unlock()
		return nil
	}

	moving := b.rows[from]
	rows := append(b.rows[:from:from], b.rows[from+1:]...)
	rows = append(rows[:to], append([]*domain.Record{moving}, rows[to:]...)...)
	b.rows = rows

	lo, hi := min(from, to), max(from, to)
	tx := Transaction{Index: lo, Update: append([]*domain.Record(nil), rows[lo:hi+1]...)}
	b.mu.Unlock()

	b.log.Debugf("moved row %d to %d", from, to)
	return b.grid.ApplyTransaction(tx)
}

// SortBy orders the bound rows by a sortable column. Nulls sort last in both
// directions.
func (b *Binder) SortBy(field string, desc bool) error {
	b.mu.Lock()
	col, ok := columns.Find(b.cols, field)
	if !ok || !col.Sortable {
		b.mu.Unlock()
		return apperrors.NewBadRequestError(fmt.Sprintf("column %q is not sortable", field))
	}
	sort.SliceStable(b.rows, func(i, j int) bool {
		vi, _ := b.rows[i].Lookup(field)
		vj, _ := b.rows[j].Lookup(field)
		return less(vi, vj, desc)
	})
	bound, cols := b.viewLocked()
	b.mu.Unlock()

	return b.grid.Bind(bound, cols)
}

// FilterRows narrows the bound rows to those of the loaded page matching a
// govaluate expression over the flattened row, e.g.
// "[user.login] == 'octocat' && comments > 2". An empty expression restores
// the full page. It returns the number of rows left.
func (b *Binder) FilterRows(expr string) (int, error) {
	var compiled *govaluate.EvaluableExpression
	if strings.TrimSpace(expr) != "" {
		var err error
		compiled, err = govaluate.NewEvaluableExpression(expr)
		if err != nil {
			return 0, apperrors.NewBadRequestError(fmt.Sprintf("invalid filter expression: %v", err))
		}
	}

	b.mu.Lock()
	kept := make([]*domain.Record, 0, len(b.loaded))
	for _, row := range b.loaded {
		if compiled == nil || matches(compiled, row) {
			kept = append(kept, row)
		}
	}
	b.rows = kept
	bound, cols := b.viewLocked()
	b.mu.Unlock()

	return len(bound), b.grid.Bind(bound, cols)
}

func (b *Binder) viewLocked() ([]*domain.Record, []columns.Definition) {
	return append([]*domain.Record{}, b.rows...), append([]columns.Definition{}, b.cols...)
}

func matches(expr *govaluate.EvaluableExpression, row *domain.Record) bool {
	params := map[string]interface{}{}
	for _, f := range schema.Flatten(row) {
		params[f.Path] = paramValue(f.Value)
	}
	result, err := expr.Evaluate(params)
	if err != nil {
		return false
	}
	ok, isBool := result.(bool)
	return isBool && ok
}

func paramValue(v domain.Value) interface{} {
	switch v.Kind() {
	case domain.KindNull:
		return nil
	case domain.KindString:
		s, _ := v.AsString()
		return s
	case domain.KindNumber:
		n, _ := v.AsNumber()
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case domain.KindBool:
		bv, _ := v.AsBool()
		return bv
	}
	return v.Text()
}

func less(a, b domain.Value, desc bool) bool {
	if a.IsNull() || b.IsNull() {
		return !a.IsNull() && b.IsNull()
	}
	c := compare(a, b)
	if desc {
		return c > 0
	}
	return c < 0
}

func compare(a, b domain.Value) int {
	an, aok := a.AsNumber()
	bn, bok := b.AsNumber()
	if aok && bok {
		af, aerr := an.Float64()
		bf, berr := bn.Float64()
		if aerr == nil && berr == nil {
			return cmp.Compare(af, bf)
		}
	}
	ab, aok := a.AsBool()
	bb, bok := b.AsBool()
	if aok && bok {
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	}
	return strings.Compare(a.Text(), b.Text())
}

func indexOf(rows []*domain.Record, row *domain.Record) int {
	if row == nil {
		return -1
	}
	for i, r := range rows {
		if r == row {
			return i
		}
	}
	return -1
}
