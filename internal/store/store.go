// Package store defines the durable tabular store the catalog is written to.
// Backends live in sub-packages: airtable (default), postgres and memory.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// DefaultPageSize is used when a query does not set PageSize.
const DefaultPageSize = 100

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// Store is the durable record store.
type Store interface {
	// Create inserts one record per field map and returns the created records
	// in input order.
	Create(ctx context.Context, table string, fields []map[string]any) ([]Record, error)

	// FirstPage returns the first page of records matching q.
	FirstPage(ctx context.Context, table string, q Query) ([]Record, error)

	// All returns every record matching q, following pagination.
	All(ctx context.Context, table string, q Query) ([]Record, error)
}

// Record is a row of the store. ID is assigned by the store and is unrelated
// to any coin identifier.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

// String returns a text field, or "" if absent or not text.
func (r Record) String(name string) string {
	switch v := r.Fields[name].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Float returns a numeric field.
func (r Record) Float(name string) (float64, bool) {
	switch v := r.Fields[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Query selects records.
type Query struct {
	MaxRecords int     // total cap across pages; 0 means unlimited
	PageSize   int     // records per page; 0 means DefaultPageSize
	View       string  // named view; backends without views ignore it
	Filter     *Filter // optional single-field equality filter
}

// Limit returns the number of records a first-page fetch should return.
func (q Query) Limit() int {
	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if q.MaxRecords > 0 && q.MaxRecords < size {
		return q.MaxRecords
	}
	return size
}

// Filter matches records whose Field equals Value exactly (case-sensitive).
type Filter struct {
	Field string
	Value string
}

// FieldEquals builds a Filter.
func FieldEquals(field, value string) *Filter {
	return &Filter{Field: field, Value: value}
}

var formulaEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Formula renders the filter as an Airtable formula, e.g. {symbol}="doge".
func (f Filter) Formula() string {
	return "{" + f.Field + `}="` + formulaEscaper.Replace(f.Value) + `"`
}

// Match reports whether r satisfies the filter. Numeric fields are compared
// by their shortest decimal form.
func (f Filter) Match(r Record) bool {
	v, ok := r.Fields[f.Field]
	if !ok {
		return false
	}
	switch x := v.(type) {
	case string:
		return x == f.Value
	default:
		if n, ok := r.Float(f.Field); ok {
			return strconv.FormatFloat(n, 'f', -1, 64) == f.Value
		}
		return false
	}
}
