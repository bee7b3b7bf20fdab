package grid

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-data-explorer/internal/columns"
	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	apperrors "github.com/kurihiro0119/github-data-explorer/internal/errors"
)

type recordingGrid struct {
	rows    []*domain.Record
	cols    []columns.Definition
	txs     []Transaction
	handler Handler
}

func (g *recordingGrid) Bind(rows []*domain.Record, cols []columns.Definition) error {
	g.rows = rows
	g.cols = cols
	return nil
}

func (g *recordingGrid) ApplyTransaction(tx Transaction) error {
	g.txs = append(g.txs, tx)
	return nil
}

func (g *recordingGrid) On(handler Handler) { g.handler = handler }

type recordingNav struct {
	refs   []domain.IssueRef
	actors []string
}

func (n *recordingNav) NavigateToIssue(ctx context.Context, ref domain.IssueRef) error {
	n.refs = append(n.refs, ref)
	return nil
}

func (n *recordingNav) LookupActor(ctx context.Context, actor string) error {
	n.actors = append(n.actors, actor)
	return nil
}

func parse(t *testing.T, raws ...string) []*domain.Record {
	t.Helper()
	out := make([]*domain.Record, len(raws))
	for i, raw := range raws {
		var r domain.Record
		require.NoError(t, json.Unmarshal([]byte(raw), &r))
		out[i] = &r
	}
	return out
}

func issuesPage(t *testing.T) domain.DataGridResult {
	return domain.DataGridResult{
		Records: parse(t,
			`{"id":"1","user":{"login":"bob"},"repo_id":"acme/widgets","number":42}`,
			`{"id":"2","user":{"login":"alice"},"repo_id":"acme/widgets","number":7}`,
			`{"id":"3","user":{"login":null},"repo_id":"acme","number":"9"}`,
		),
		Total:    3,
		Page:     1,
		PageSize: 100,
	}
}

func newTestBinder(t *testing.T) (*Binder, *recordingGrid, *recordingNav) {
	g := &recordingGrid{}
	nav := &recordingNav{}
	b := NewBinder(g, columns.DefaultOptions(), nav, nav, nil)
	require.NotNil(t, g.handler, "binder registers itself on the grid")
	return b, g, nav
}

func TestBinder_Load(t *testing.T) {
	b, g, _ := newTestBinder(t)

	require.NoError(t, b.Load(issuesPage(t), "issues"))

	assert.Len(t, g.rows, 3)
	assert.Equal(t, []string{"id", "user.login", "repo_id", "number"}, columns.Fields(g.cols))
	assert.Equal(t, columns.RendererGroupExpander, g.cols[0].Renderer)
	assert.Equal(t, columns.ActionIssueNavigation, g.cols[3].Action)
	assert.Equal(t, "issues", b.Kind())
}

func TestBinder_EmptyPageKeepsColumns(t *testing.T) {
	b, g, _ := newTestBinder(t)
	require.NoError(t, b.Load(issuesPage(t), "issues"))

	require.NoError(t, b.Load(domain.EmptyResult(100), "issues"))

	assert.Empty(t, g.rows)
	assert.Len(t, g.cols, 4)
}

func TestBinder_ReadyEvent(t *testing.T) {
	b, g, _ := newTestBinder(t)
	assert.False(t, b.Ready())

	g.handler(context.Background(), Event{Kind: EventReady})

	assert.True(t, b.Ready())
}

func TestBinder_CellClickedIssueNavigation(t *testing.T) {
	b, g, nav := newTestBinder(t)
	require.NoError(t, b.Load(issuesPage(t), "issues"))
	row := g.rows[0]

	g.handler(context.Background(), Event{Kind: EventCellClicked, Row: row, Field: "number"})

	require.Len(t, nav.refs, 1)
	assert.Equal(t, domain.IssueRef{Number: 42, Org: "acme", Repo: "widgets"}, nav.refs[0])
	assert.Same(t, row, b.Clicked())
	assert.Contains(t, b.ClickedJSON(), `"number": 42`)
}

func TestBinder_CellClickedIssueNavigationOutsideIssues(t *testing.T) {
	b, g, nav := newTestBinder(t)
	require.NoError(t, b.Load(issuesPage(t), "pulls"))

	require.NoError(t, b.CellClicked(context.Background(), g.rows[0], "number"))

	assert.Empty(t, nav.refs)
}

func TestBinder_CellClickedBadRepoID(t *testing.T) {
	b, g, nav := newTestBinder(t)
	require.NoError(t, b.Load(issuesPage(t), "issues"))

	err := b.CellClicked(context.Background(), g.rows[2], "number")

	assert.True(t, apperrors.IsBadRequest(err))
	assert.Empty(t, nav.refs)
	assert.Same(t, g.rows[2], b.Clicked(), "the row is still selected")
}

func TestBinder_CellClickedActorLookup(t *testing.T) {
	b, g, nav := newTestBinder(t)
	require.NoError(t, b.Load(issuesPage(t), "issues"))

	require.NoError(t, b.CellClicked(context.Background(), g.rows[1], "user.login"))
	require.NoError(t, b.CellClicked(context.Background(), g.rows[2], "user.login"))

	assert.Equal(t, []string{"alice"}, nav.actors, "null actors do not trigger a lookup")
	assert.Empty(t, nav.refs)
}

func TestBinder_CellClickedPlainColumn(t *testing.T) {
	b, g, nav := newTestBinder(t)
	require.NoError(t, b.Load(issuesPage(t), "issues"))

	require.NoError(t, b.CellClicked(context.Background(), g.rows[1], "repo_id"))

	assert.Empty(t, nav.actors)
	assert.Empty(t, nav.refs)
	assert.Same(t, g.rows[1], b.Clicked())
}

func TestBinder_CellClickedUnknownRow(t *testing.T) {
	b, _, nav := newTestBinder(t)
	require.NoError(t, b.Load(issuesPage(t), "issues"))
	stranger := parse(t, `{"id":"1","user":{"login":"bob"},"repo_id":"acme/widgets","number":42}`)[0]

	require.NoError(t, b.CellClicked(context.Background(), stranger, "number"))

	assert.Empty(t, nav.refs, "rows are matched by identity, not content")
	assert.Nil(t, b.Clicked())
	assert.Equal(t, "", b.ClickedJSON())
}

func TestBinder_RowDragEnd(t *testing.T) {
	b, g, _ := newTestBinder(t)
	page := domain.DataGridResult{Records: parse(t, `{"id":"a"}`, `{"id":"b"}`, `{"id":"c"}`, `{"id":"d"}`)}
	require.NoError(t, b.Load(page, "commits"))
	a, bb, c, d := g.rows[0], g.rows[1], g.rows[2], g.rows[3]

	g.handler(context.Background(), Event{Kind: EventRowDragEnd, Row: a, Over: c})

	assert.Equal(t, []*domain.Record{bb, c, a, d}, b.Rows())
	require.Len(t, g.txs, 1)
	assert.Equal(t, 0, g.txs[0].Index)
	assert.Equal(t, []*domain.Record{bb, c, a}, g.txs[0].Update)

	require.NoError(t, b.RowDragEnd(d, bb))
	assert.Equal(t, []*domain.Record{d, bb, c, a}, b.Rows())
	assert.Equal(t, 0, g.txs[1].Index)
	assert.Equal(t, []*domain.Record{d, bb, c, a}, g.txs[1].Update)

	require.NoError(t, b.RowDragEnd(c, a))
	assert.Equal(t, []*domain.Record{d, bb, a, c}, b.Rows())
	assert.Equal(t, 2, g.txs[2].Index)
}

func TestBinder_RowDragEndIgnoresUnknownRows(t *testing.T) {
	b, g, _ := newTestBinder(t)
	require.NoError(t, b.Load(domain.DataGridResult{Records: parse(t, `{"id":"a"}`, `{"id":"b"}`)}, "commits"))
	before := b.Rows()

	require.NoError(t, b.RowDragEnd(parse(t, `{"id":"a"}`)[0], g.rows[1]))
	require.NoError(t, b.RowDragEnd(g.rows[0], g.rows[0]))

	assert.Equal(t, before, b.Rows())
	assert.Empty(t, g.txs)
}

func TestBinder_Detail(t *testing.T) {
	b, g, _ := newTestBinder(t)
	require.NoError(t, b.Load(issuesPage(t), "issues"))

	detail, err := b.Detail(b.RowAt(0))
	require.NoError(t, err)
	assert.Contains(t, detail, "\"login\": \"bob\"")
	assert.Same(t, g.rows[0], b.RowAt(0))
	assert.Nil(t, b.RowAt(5))

	_, err = b.Detail(nil)
	assert.Error(t, err)
}

func TestBinder_SortBy(t *testing.T) {
	b, g, _ := newTestBinder(t)
	page := domain.DataGridResult{Records: parse(t,
		`{"id":"a","score":10}`,
		`{"id":"b","score":null}`,
		`{"id":"c","score":2}`,
		`{"id":"d","score":33}`,
	)}
	require.NoError(t, b.Load(page, "scores"))

	require.NoError(t, b.SortBy("score", false))
	assert.Equal(t, []string{"c", "a", "d", "b"}, ids(g.rows))

	require.NoError(t, b.SortBy("score", true))
	assert.Equal(t, []string{"d", "a", "c", "b"}, ids(g.rows))

	assert.True(t, apperrors.IsBadRequest(b.SortBy("missing", false)))
}

func TestBinder_FilterRows(t *testing.T) {
	b, g, _ := newTestBinder(t)
	require.NoError(t, b.Load(issuesPage(t), "issues"))

	n, err := b.FilterRows("[user.login] == 'bob' || number < 10")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"1", "2"}, ids(g.rows))

	n, err = b.FilterRows("")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = b.FilterRows("number >")
	assert.True(t, apperrors.IsBadRequest(err))
}

func ids(rows []*domain.Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		v, _ := r.Get("id")
		out[i] = v.Text()
	}
	return out
}
