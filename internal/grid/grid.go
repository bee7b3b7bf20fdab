// Package grid binds the current page of records to a tabular widget.
package grid

import (
	"context"

	"github.com/kurihiro0119/github-data-explorer/internal/columns"
	"github.com/kurihiro0119/github-data-explorer/internal/domain"
)

// EventKind identifies a widget event
type EventKind int

const (
	EventReady EventKind = iota
	EventCellClicked
	EventRowDragEnd
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventCellClicked:
		return "cellClicked"
	case EventRowDragEnd:
		return "rowDragEnd"
	}
	return "unknown"
}

// Event is emitted by a Grid. Row is the row the event happened on, Field the
// clicked column and Over the row a dragged row was dropped onto.
type Event struct {
	Kind  EventKind
	Row   *domain.Record
	Field string
	Over  *domain.Record
}

// Handler receives grid events
type Handler func(ctx context.Context, ev Event)

// Transaction is an incremental change to the bound rows. Update lists rows
// whose position or content changed, in their new order starting at Index.
type Transaction struct {
	Index  int
	Update []*domain.Record
}

// Grid is the rendering widget. Implementations must keep the row pointers
// they were bound with so events can be matched by identity.
type Grid interface {
	Bind(rows []*domain.Record, cols []columns.Definition) error
	ApplyTransaction(tx Transaction) error
	On(handler Handler)
}

// Navigator opens the detail view of an issue
type Navigator interface {
	NavigateToIssue(ctx context.Context, ref domain.IssueRef) error
}

// ActorLookup shows the records related to an actor
type ActorLookup interface {
	LookupActor(ctx context.Context, actor string) error
}
