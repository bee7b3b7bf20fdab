// Package columns derives grid column definitions from sample records.
package columns

import (
	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	"github.com/kurihiro0119/github-data-explorer/internal/schema"
)

// Renderer selects how the grid draws a cell
type Renderer string

const (
	RendererDefault       Renderer = "default"
	RendererGroupExpander Renderer = "group-expander"
	RendererHyperlink     Renderer = "hyperlink"
)

// Action is what a click on a hyperlink cell should trigger
type Action string

const (
	ActionNone            Action = ""
	ActionActorLookup     Action = "actor-lookup"
	ActionIssueNavigation Action = "issue-navigation"
)

// Definition describes one grid column
type Definition struct {
	HeaderName string   `json:"headerName"`
	FieldPath  string   `json:"field"`
	Sortable   bool     `json:"sortable"`
	Filterable bool     `json:"filter"`
	Resizable  bool     `json:"resizable"`
	RowDrag    bool     `json:"rowDrag,omitempty"`
	Renderer   Renderer `json:"cellRenderer"`
	Action     Action   `json:"action,omitempty"`
}

// Options names the fields that get link behaviour
type Options struct {
	// ActorField holds a user identifier; clicking it looks up that actor's records
	ActorField string
	// SequenceField holds the issue number in the issues collection
	SequenceField string
	// RepoField holds the composite "org/repo" identifier of an issue
	RepoField string
	// IssuesKind is the collection name for which SequenceField navigates
	IssuesKind string
}

// DefaultOptions returns the field names used by the backend's GitHub collections
func DefaultOptions() Options {
	return Options{
		ActorField:    "user.login",
		SequenceField: "number",
		RepoField:     "repo_id",
		IssuesKind:    "issues",
	}
}

// Build derives one column per leaf of the sample record, in Flatten order.
// Only the sample is inspected: fields that appear solely in later records of
// the same page get no column.
func Build(sample *domain.Record, kind string, opts Options) []Definition {
	fields := schema.Flatten(sample)
	defs := make([]Definition, 0, len(fields))
	for _, f := range fields {
		def := newDefinition(f.Path)
		switch {
		case kind == opts.IssuesKind && opts.SequenceField != "" && f.Path == opts.SequenceField:
			def.Renderer = RendererHyperlink
			def.Action = ActionIssueNavigation
		case opts.ActorField != "" && f.Path == opts.ActorField:
			def.Renderer = RendererHyperlink
			def.Action = ActionActorLookup
		}
		defs = append(defs, def)
	}
	markFirst(defs)
	return defs
}

// FromFieldList builds columns from an explicit list of field names, as
// supplied by the server for related-record grids.
func FromFieldList(fields []string) []Definition {
	defs := make([]Definition, 0, len(fields))
	for _, f := range fields {
		defs = append(defs, newDefinition(f))
	}
	markFirst(defs)
	return defs
}

// Find returns the column for a field path
func Find(defs []Definition, field string) (Definition, bool) {
	for _, d := range defs {
		if d.FieldPath == field {
			return d, true
		}
	}
	return Definition{}, false
}

// Fields returns the field paths of defs in order
func Fields(defs []Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.FieldPath
	}
	return out
}

func newDefinition(path string) Definition {
	return Definition{
		HeaderName: schema.FormatHeader(path),
		FieldPath:  path,
		Sortable:   true,
		Filterable: true,
		Resizable:  true,
		Renderer:   RendererDefault,
	}
}

// markFirst gives the first column the detail expander and the drag handle.
// A link action on that column is kept so clicks still dispatch.
func markFirst(defs []Definition) {
	if len(defs) == 0 {
		return
	}
	defs[0].Renderer = RendererGroupExpander
	defs[0].RowDrag = true
}
