package trove

import (
	"errors"
	"testing"

	"github.com/hamba/avro/v2"
)

const selectorSchemaDoc = `{
	"type": "record",
	"name": "Event",
	"fields": [
		{"name": "id", "type": "long"},
		{"name": "count", "type": "int"},
		{"name": "score", "type": "double"},
		{"name": "ratio", "type": "float"},
		{"name": "done", "type": "boolean"},
		{"name": "status", "type": "string"},
		{"name": "tags", "type": {"type": "array", "items": "string"}}
	]
}`

// -----------------------------------------------------------------------------
// Range parsing
// -----------------------------------------------------------------------------

func TestParseRange_Grammar(t *testing.T) {
	cases := []struct {
		spec  string
		lower int64
		upper int64
	}{
		{"", 0, NoLimit},
		{"5", 5, 5},
		{"2-45", 2, 45},
		{"-45", 0, 45},
		{"2-", 2, NoLimit},
		{"0-0", 0, 0},
	}

	for _, tc := range cases {
		r, err := ParseRange(tc.spec)
		if err != nil {
			t.Fatalf("ParseRange(%q): %v", tc.spec, err)
		}
		if r.Lower != tc.lower || r.Upper != tc.upper {
			t.Errorf("ParseRange(%q) = [%d,%d], want [%d,%d]", tc.spec, r.Lower, r.Upper, tc.lower, tc.upper)
		}
	}
}

func TestParseRange_Invalid(t *testing.T) {
	for _, spec := range []string{"45-2", "-", "abc", "2-x", "x-2", "2--3", "1.5", "+2"} {
		if _, err := ParseRange(spec); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("ParseRange(%q): expected ErrInvalidRange, got %v", spec, err)
		}
	}
}

func TestParseLimit(t *testing.T) {
	n, err := ParseLimit("")
	if err != nil || n != NoLimit {
		t.Fatalf("ParseLimit(\"\") = %d, %v", n, err)
	}

	n, err = ParseLimit("7")
	if err != nil || n != 7 {
		t.Fatalf("ParseLimit(\"7\") = %d, %v", n, err)
	}

	for _, spec := range []string{"-1", "x", "1.0"} {
		if _, err := ParseLimit(spec); !errors.Is(err, ErrInvalidLimit) {
			t.Errorf("ParseLimit(%q): expected ErrInvalidLimit, got %v", spec, err)
		}
	}
}

// -----------------------------------------------------------------------------
// Equality selection
// -----------------------------------------------------------------------------

func TestParseEquality_Malformed(t *testing.T) {
	schema := mustParseSchema(t, selectorSchemaDoc)

	for _, spec := range []string{"nofield", "=value"} {
		if _, err := ParseEquality(spec, schema); !errors.Is(err, ErrInvalidEquality) {
			t.Errorf("ParseEquality(%q): expected ErrInvalidEquality, got %v", spec, err)
		}
	}
}

func TestParseEquality_UnknownFieldNeverMatches(t *testing.T) {
	schema := mustParseSchema(t, selectorSchemaDoc)

	eq, err := ParseEquality("missing=anything", schema)
	if err != nil {
		t.Fatalf("ParseEquality: %v", err)
	}
	if eq.Matches(Record{"missing": "anything", "status": "anything"}) {
		t.Error("unknown field must never match")
	}
}

func TestParseEquality_TypedComparison(t *testing.T) {
	schema := mustParseSchema(t, selectorSchemaDoc)
	rec := Record{
		"id":     int64(42),
		"count":  7,
		"score":  2.5,
		"ratio":  float32(0.5),
		"done":   true,
		"status": "done",
		"tags":   []any{"a", "b"},
	}

	cases := []struct {
		spec string
		want bool
	}{
		{"id=42", true},
		{"id=41", false},
		{"count=7", true},
		{"count=8", false},
		{"score=2.5", true},
		{"score=2.6", false},
		{"ratio=0.5", true},
		{"done=true", true},
		{"done=false", false},
		{"status=done", true},
		{"status=pending", false},
		// Non-primitive field: string-form fallback.
		{"tags=[a b]", true},
		{"tags=[a]", false},
	}

	for _, tc := range cases {
		eq, err := ParseEquality(tc.spec, schema)
		if err != nil {
			t.Fatalf("ParseEquality(%q): %v", tc.spec, err)
		}
		if got := eq.Matches(rec); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.spec, got, tc.want)
		}
	}
}

func TestParseEquality_NilSchema(t *testing.T) {
	eq, err := ParseEquality("status=done", nil)
	if err != nil {
		t.Fatalf("ParseEquality: %v", err)
	}
	if eq.Matches(Record{"status": "done"}) {
		t.Error("nil schema must never match")
	}

	// Shape validation still applies without a schema.
	if _, err := ParseEquality("nofield", nil); !errors.Is(err, ErrInvalidEquality) {
		t.Errorf("expected ErrInvalidEquality, got %v", err)
	}
}

func TestParseEquality_CoercionFailure(t *testing.T) {
	schema := mustParseSchema(t, selectorSchemaDoc)

	for _, spec := range []string{"id=abc", "score=notanumber", "done=yesplease"} {
		if _, err := ParseEquality(spec, schema); !errors.Is(err, ErrInvalidEquality) {
			t.Errorf("ParseEquality(%q): expected ErrInvalidEquality, got %v", spec, err)
		}
	}
}

// -----------------------------------------------------------------------------
// Selector composition
// -----------------------------------------------------------------------------

func TestSelector_RangeAndStop(t *testing.T) {
	rng, err := ParseRange("2-4")
	if err != nil {
		t.Fatal(err)
	}
	sel := NewSelector(rng, nil, NoLimit)

	type step struct {
		include bool
		stop    bool
	}
	want := []step{
		{false, false}, // 0: below lower bound, keep scanning
		{false, false}, // 1
		{true, false},  // 2
		{true, false},  // 3
		{true, false},  // 4
		{false, true},  // 5: past upper bound, final
	}

	for i, w := range want {
		include, stop := sel.Evaluate(int64(i), Record{})
		if include != w.include || stop != w.stop {
			t.Errorf("index %d: (include=%v, stop=%v), want (%v, %v)", i, include, stop, w.include, w.stop)
		}
	}
}

func TestSelector_LimitStops(t *testing.T) {
	rng, _ := ParseRange("")
	sel := NewSelector(rng, nil, 2)

	for i := 0; i < 2; i++ {
		include, stop := sel.Evaluate(int64(i), Record{})
		if !include || stop {
			t.Fatalf("index %d: expected inclusion before limit", i)
		}
	}
	if include, stop := sel.Evaluate(2, Record{}); include || !stop {
		t.Error("expected stop once limit is reached")
	}
	if sel.Matched() != 2 {
		t.Errorf("Matched() = %d, want 2", sel.Matched())
	}
}

func TestSelector_LimitCountsMatchesNotVisits(t *testing.T) {
	schema := mustParseSchema(t, selectorSchemaDoc)
	eq, err := ParseEquality("status=done", schema)
	if err != nil {
		t.Fatal(err)
	}
	rng, _ := ParseRange("")
	sel := NewSelector(rng, eq, 1)

	if include, stop := sel.Evaluate(0, Record{"status": "pending"}); include || stop {
		t.Error("non-matching record must be skipped without stopping")
	}
	if include, stop := sel.Evaluate(1, Record{"status": "done"}); !include || stop {
		t.Error("matching record under limit must be included")
	}
	if include, stop := sel.Evaluate(2, Record{"status": "done"}); include || !stop {
		t.Error("limit reached: expected stop")
	}
}

func mustParseSchema(t *testing.T, doc string) avro.Schema {
	t.Helper()
	schema, err := parseSchema(doc)
	if err != nil {
		t.Fatalf("parseSchema: %v", err)
	}
	return schema
}
