package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// Field is one key/value pair of a Record
type Field struct {
	Key   string
	Value Value
}

// Record is an ordered mapping from keys to values. Key order is the
// insertion order, which for decoded JSON is document order.
type Record struct {
	keys   []string
	values map[string]Value
}

// NewRecord creates an empty record
func NewRecord() *Record {
	return &Record{values: make(map[string]Value)}
}

// RecordFromMap builds a record from a plain map with keys in sorted order
func RecordFromMap(m map[string]any) *Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r := NewRecord()
	for _, k := range keys {
		r.Set(k, FromInterface(m[k]))
	}
	return r
}

// Set stores a value. Replacing an existing key keeps its original position.
func (r *Record) Set(key string, v Value) *Record {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
	return r
}

// Get returns the value stored under key
func (r *Record) Get(key string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	v, ok := r.values[key]
	return v, ok
}

// Len returns the number of keys
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Keys returns the keys in insertion order
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Fields returns the key/value pairs in insertion order
func (r *Record) Fields() []Field {
	if r == nil {
		return nil
	}
	out := make([]Field, len(r.keys))
	for i, k := range r.keys {
		out[i] = Field{Key: k, Value: r.values[k]}
	}
	return out
}

// Lookup resolves a dotted path such as "user.login". Keys that themselves
// contain dots are matched before the path is split further.
func (r *Record) Lookup(path string) (Value, bool) {
	if r == nil || path == "" {
		return Value{}, false
	}
	if v, ok := r.values[path]; ok {
		return v, true
	}
	for i := len(path) - 1; i > 0; i-- {
		if path[i] != '.' {
			continue
		}
		v, ok := r.values[path[:i]]
		if !ok {
			continue
		}
		nested, ok := v.AsObject()
		if !ok {
			continue
		}
		if found, ok := nested.Lookup(path[i+1:]); ok {
			return found, true
		}
	}
	return Value{}, false
}

// Map converts the record to a plain map
func (r *Record) Map() map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		out[k] = r.values[k].Interface()
	}
	return out
}

// Equal reports whether both records hold equal values in the same key order
func (r *Record) Equal(o *Record) bool {
	if r.Len() != o.Len() {
		return false
	}
	for i, k := range r.Keys() {
		if o.keys[i] != k {
			return false
		}
		if !r.values[k].Equal(o.values[k]) {
			return false
		}
	}
	return true
}

// String returns compact JSON
func (r *Record) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}

// Indent returns the record as indented JSON, key order preserved
func (r *Record) Indent() (string, error) {
	b, err := r.MarshalJSON()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}

// MarshalJSON implements json.Marshaler
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Record) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	obj, ok := v.AsObject()
	if !ok {
		return errors.New("record must be a JSON object, got " + strings.ToLower(v.Kind().String()))
	}
	*r = *obj
	return nil
}

func (r *Record) encode(buf *bytes.Buffer) error {
	if r == nil {
		buf.WriteString("null")
		return nil
	}
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := r.values[k].encode(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
