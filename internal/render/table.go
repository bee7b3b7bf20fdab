// Package render draws grid pages as terminal tables.
package render

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"

	"github.com/kurihiro0119/github-data-explorer/internal/columns"
	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	"github.com/kurihiro0119/github-data-explorer/internal/grid"
)

// DefaultMaxCellWidth is the width at which cell text is truncated
const DefaultMaxCellWidth = 48

// TableGrid is a grid.Grid that prints bound rows with tablewriter. Rows are
// addressed by their display index when emitting events.
type TableGrid struct {
	mu           sync.Mutex
	out          io.Writer
	rows         []*domain.Record
	cols         []columns.Definition
	handler      grid.Handler
	MaxCellWidth int
	// RenderOnBind prints the table every time rows are bound
	RenderOnBind bool
}

// NewTableGrid creates a table grid printing to out
func NewTableGrid(out io.Writer) *TableGrid {
	return &TableGrid{out: out, MaxCellWidth: DefaultMaxCellWidth}
}

// Bind replaces the rows and columns
func (t *TableGrid) Bind(rows []*domain.Record, cols []columns.Definition) error {
	t.mu.Lock()
	t.rows = append([]*domain.Record{}, rows...)
	t.cols = append([]columns.Definition{}, cols...)
	render := t.RenderOnBind
	t.mu.Unlock()

	if render {
		return t.Render()
	}
	return nil
}

// ApplyTransaction overwrites the rows starting at tx.Index
func (t *TableGrid) ApplyTransaction(tx grid.Transaction) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tx.Index < 0 || tx.Index+len(tx.Update) > len(t.rows) {
		return fmt.Errorf("transaction [%d,%d) out of range of %d rows", tx.Index, tx.Index+len(tx.Update), len(t.rows))
	}
	copy(t.rows[tx.Index:], tx.Update)
	return nil
}

// On registers the event handler
func (t *TableGrid) On(handler grid.Handler) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// Emit delivers ev to the registered handler
func (t *TableGrid) Emit(ctx context.Context, ev grid.Event) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h(ctx, ev)
	}
}

// Ready emits the ready event
func (t *TableGrid) Ready(ctx context.Context) {
	t.Emit(ctx, grid.Event{Kind: grid.EventReady})
}

// Click emits a cell click on the row at index
func (t *TableGrid) Click(ctx context.Context, index int, field string) error {
	row, err := t.rowAt(index)
	if err != nil {
		return err
	}
	t.Emit(ctx, grid.Event{Kind: grid.EventCellClicked, Row: row, Field: field})
	return nil
}

// Drag emits a row drag of the row at from dropped onto the row at over
func (t *TableGrid) Drag(ctx context.Context, from, over int) error {
	row, err := t.rowAt(from)
	if err != nil {
		return err
	}
	target, err := t.rowAt(over)
	if err != nil {
		return err
	}
	t.Emit(ctx, grid.Event{Kind: grid.EventRowDragEnd, Row: row, Over: target})
	return nil
}

// Rows returns the rows in display order
func (t *TableGrid) Rows() []*domain.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*domain.Record{}, t.rows...)
}

// Columns returns the bound columns
func (t *TableGrid) Columns() []columns.Definition {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]columns.Definition{}, t.cols...)
}

// Render prints the table to the grid's writer
func (t *TableGrid) Render() error {
	if t.out == nil {
		return nil
	}
	return t.RenderTo(t.out)
}

// RenderTo prints the table to w. A leading "#" column holds the row index.
func (t *TableGrid) RenderTo(w io.Writer) error {
	t.mu.Lock()
	rows := append([]*domain.Record{}, t.rows...)
	cols := append([]columns.Definition{}, t.cols...)
	width := t.MaxCellWidth
	t.mu.Unlock()

	if len(cols) == 0 {
		_, err := fmt.Fprintln(w, "No records.")
		return err
	}

	header := make([]string, 0, len(cols)+1)
	header = append(header, "#")
	for _, c := range cols {
		header = append(header, c.HeaderName)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for i, row := range rows {
		line := make([]string, 0, len(cols)+1)
		line = append(line, strconv.Itoa(i))
		for _, c := range cols {
			line = append(line, Cell(row, c, width))
		}
		table.Append(line)
	}
	table.Render()
	return nil
}

func (t *TableGrid) rowAt(index int) (*domain.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.rows) {
		return nil, fmt.Errorf("row %d out of range (%d rows)", index, len(t.rows))
	}
	return t.rows[index], nil
}

// Cell formats the value of col in row. Missing and null values are empty,
// arrays and objects print as compact JSON. Text longer than width is cut.
func Cell(row *domain.Record, col columns.Definition, width int) string {
	v, _ := row.Lookup(col.FieldPath)
	text := v.Text()
	if col.Renderer == columns.RendererHyperlink && text != "" {
		text = "↗ " + text
	}
	return truncate(text, width)
}

func truncate(s string, width int) string {
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}
