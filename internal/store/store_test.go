package store

import (
	"encoding/json"
	"testing"
)

func TestRecordAccessors(t *testing.T) {
	r := Record{
		ID: "rec1",
		Fields: map[string]any{
			"symbol":        "doge",
			"current_price": 0.08,
			"market_cap":    5000000,
			"as_text":       "12.5",
			"as_number":     json.Number("7"),
		},
	}

	if got := r.String("symbol"); got != "doge" {
		t.Errorf("String(symbol) = %q", got)
	}
	if got := r.String("current_price"); got != "" {
		t.Errorf("String(current_price) = %q, want empty", got)
	}

	tests := []struct {
		field string
		want  float64
		ok    bool
	}{
		{"current_price", 0.08, true},
		{"market_cap", 5000000, true},
		{"as_text", 12.5, true},
		{"as_number", 7, true},
		{"symbol", 0, false},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		got, ok := r.Float(tt.field)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Float(%q) = %v, %v; want %v, %v", tt.field, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFilterFormula(t *testing.T) {
	tests := []struct {
		filter Filter
		want   string
	}{
		{Filter{"symbol", "doge"}, `{symbol}="doge"`},
		{Filter{"symbol", `a"b`}, `{symbol}="a\"b"`},
		{Filter{"symbol", `x") , TRUE() , ("`}, `{symbol}="x\") , TRUE() , (\""`},
		{Filter{"name", `back\slash`}, `{name}="back\\slash"`},
	}
	for _, tt := range tests {
		if got := tt.filter.Formula(); got != tt.want {
			t.Errorf("Formula() = %s, want %s", got, tt.want)
		}
	}
}

func TestFilterMatch(t *testing.T) {
	r := Record{Fields: map[string]any{"symbol": "doge", "market_cap": 5000000.0}}

	if !FieldEquals("symbol", "doge").Match(r) {
		t.Error("exact match should succeed")
	}
	if FieldEquals("symbol", "DOGE").Match(r) {
		t.Error("match must be case-sensitive")
	}
	if !FieldEquals("market_cap", "5000000").Match(r) {
		t.Error("numeric field should match its decimal form")
	}
	if FieldEquals("name", "doge").Match(r) {
		t.Error("missing field should not match")
	}
}

func TestQueryLimit(t *testing.T) {
	tests := []struct {
		q    Query
		want int
	}{
		{Query{}, DefaultPageSize},
		{Query{MaxRecords: 20}, 20},
		{Query{MaxRecords: 1}, 1},
		{Query{PageSize: 10, MaxRecords: 20}, 10},
		{Query{MaxRecords: 500}, DefaultPageSize},
	}
	for _, tt := range tests {
		if got := tt.q.Limit(); got != tt.want {
			t.Errorf("%+v.Limit() = %d, want %d", tt.q, got, tt.want)
		}
	}
}
