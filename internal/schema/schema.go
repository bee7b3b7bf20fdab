// Package schema infers a flat list of addressable fields from a sample record.
package schema

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
)

// Field is one terminal value reachable from the root of a record
type Field struct {
	Path  string
	Value domain.Value
}

// Flatten walks a record in key order. Nested objects are descended into with
// dotted paths; every other value (scalars, null, arrays) yields one field.
func Flatten(record *domain.Record) []Field {
	return flatten(record, "")
}

func flatten(record *domain.Record, prefix string) []Field {
	fields := []Field{}
	for _, f := range record.Fields() {
		path := f.Key
		if prefix != "" {
			path = prefix + "." + f.Key
		}

		if nested, ok := f.Value.AsObject(); ok {
			fields = append(fields, flatten(nested, path)...)
			continue
		}
		fields = append(fields, Field{Path: path, Value: f.Value})
	}
	return fields
}

// Paths returns only the field paths of Flatten
func Paths(record *domain.Record) []string {
	fields := Flatten(record)
	paths := make([]string, len(fields))
	for i, f := range fields {
		paths[i] = f.Path
	}
	return paths
}

// FormatHeader turns the last segment of a field path into a display name:
// "user.created_at" becomes "Created At".
func FormatHeader(path string) string {
	last := path
	if i := strings.LastIndex(path, "."); i >= 0 {
		last = path[i+1:]
	}

	words := strings.Split(last, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
