package trove

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hamba/avro/v2"
)

// NoLimit disables the result-count limit.
const NoLimit = int64(math.MaxInt64)

// -----------------------------------------------------------------------------
// Index range
// -----------------------------------------------------------------------------

// Range is a closed interval over the global index domain. Upper is
// math.MaxInt64 when the interval is unbounded above.
type Range struct {
	Lower int64
	Upper int64
}

// ParseRange parses the compact range grammar:
//
//	""    -> [0, +inf)
//	"N"   -> [N, N]
//	"N-M" -> [N, M]
//	"-M"  -> [0, M]
//	"N-"  -> [N, +inf)
//
// Bounds are non-negative and N <= M when both are given.
func ParseRange(spec string) (Range, error) {
	if spec == "" {
		return Range{Lower: 0, Upper: NoLimit}, nil
	}

	lowerText, upperText, dashed := strings.Cut(spec, "-")
	if !dashed {
		n, err := parseBound(spec)
		if err != nil {
			return Range{}, fmt.Errorf("trove: %w: %q", ErrInvalidRange, spec)
		}
		return Range{Lower: n, Upper: n}, nil
	}

	if lowerText == "" && upperText == "" {
		return Range{}, fmt.Errorf("trove: %w: %q", ErrInvalidRange, spec)
	}

	r := Range{Lower: 0, Upper: NoLimit}
	if lowerText != "" {
		n, err := parseBound(lowerText)
		if err != nil {
			return Range{}, fmt.Errorf("trove: %w: %q", ErrInvalidRange, spec)
		}
		r.Lower = n
	}
	if upperText != "" {
		m, err := parseBound(upperText)
		if err != nil {
			return Range{}, fmt.Errorf("trove: %w: %q", ErrInvalidRange, spec)
		}
		r.Upper = m
	}

	if r.Lower > r.Upper {
		return Range{}, fmt.Errorf("trove: %w: lower bound exceeds upper in %q", ErrInvalidRange, spec)
	}
	return r, nil
}

func parseBound(s string) (int64, error) {
	// ParseUint rejects signs, so negative bounds never parse.
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// ParseLimit parses a result-count limit. Empty text means no limit.
func ParseLimit(spec string) (int64, error) {
	if spec == "" {
		return NoLimit, nil
	}
	n, err := strconv.ParseUint(spec, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("trove: %w: %q", ErrInvalidLimit, spec)
	}
	return int64(n), nil
}

// -----------------------------------------------------------------------------
// Equality selection
// -----------------------------------------------------------------------------

// Equality is a field-name / literal-value condition. The literal is coerced
// once, at construction, to the field's declared primitive type; any other
// schema kind falls back to comparing the string form of the decoded value.
// A field absent from the schema yields a condition that never matches.
type Equality struct {
	field string
	match func(v any) bool
}

// ParseEquality parses "FIELD=VALUE" against the store's effective schema.
// A literal that cannot be coerced to the field's declared type is rejected
// here, before any traversal begins. A nil schema behaves like a record
// with no fields: the text still must parse, and nothing ever matches.
func ParseEquality(spec string, schema avro.Schema) (*Equality, error) {
	field, literal, ok := strings.Cut(spec, "=")
	if !ok || field == "" {
		return nil, fmt.Errorf("trove: %w: %q", ErrInvalidEquality, spec)
	}

	ft, found := fieldSchema(schema, field)
	if !found {
		// Unknown field: selects nothing rather than failing.
		return &Equality{field: field, match: func(any) bool { return false }}, nil
	}

	match, err := literalMatcher(ft, literal)
	if err != nil {
		return nil, fmt.Errorf("trove: %w: %q: %v", ErrInvalidEquality, spec, err)
	}
	return &Equality{field: field, match: match}, nil
}

// Matches evaluates the condition against one decoded record.
func (e *Equality) Matches(rec Record) bool {
	v, ok := rec[e.field]
	if !ok {
		return false
	}
	return e.match(v)
}

// literalMatcher builds the comparator for one schema primitive kind.
func literalMatcher(ft avro.Schema, literal string) (func(v any) bool, error) {
	switch ft.Type() {
	case avro.Int:
		want, err := strconv.ParseInt(literal, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("coercing %q to int: %w", literal, err)
		}
		return func(v any) bool {
			n, ok := intValue(v)
			return ok && n == want
		}, nil

	case avro.Long:
		want, err := strconv.ParseInt(literal, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("coercing %q to long: %w", literal, err)
		}
		return func(v any) bool {
			n, ok := intValue(v)
			return ok && n == want
		}, nil

	case avro.Float:
		want, err := strconv.ParseFloat(literal, 32)
		if err != nil {
			return nil, fmt.Errorf("coercing %q to float: %w", literal, err)
		}
		return func(v any) bool {
			f, ok := floatValue(v)
			return ok && float32(f) == float32(want)
		}, nil

	case avro.Double:
		want, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return nil, fmt.Errorf("coercing %q to double: %w", literal, err)
		}
		return func(v any) bool {
			f, ok := floatValue(v)
			return ok && f == want
		}, nil

	case avro.Boolean:
		want, err := strconv.ParseBool(literal)
		if err != nil {
			return nil, fmt.Errorf("coercing %q to boolean: %w", literal, err)
		}
		return func(v any) bool {
			b, ok := v.(bool)
			return ok && b == want
		}, nil

	case avro.String:
		return func(v any) bool {
			s, ok := v.(string)
			return ok && s == literal
		}, nil

	default:
		// Universal fallback: string form of the decoded value.
		return func(v any) bool {
			return fmt.Sprint(v) == literal
		}, nil
	}
}

func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func floatValue(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	default:
		return 0, false
	}
}

// -----------------------------------------------------------------------------
// Selector
// -----------------------------------------------------------------------------

// Selector composes an index range, an optional equality condition, and a
// result-count limit into one inclusion predicate with early-stop semantics.
// The predicate itself is stateless; the match counter is scoped to one
// traversal. A Selector is built once per invocation and consumed by
// exactly one operation for exactly one pass.
type Selector struct {
	rng     Range
	eq      *Equality
	limit   int64
	matched int64
}

// NewSelector builds a selector. eq may be nil; limit NoLimit disables the
// count bound.
func NewSelector(rng Range, eq *Equality, limit int64) *Selector {
	return &Selector{rng: rng, eq: eq, limit: limit}
}

// Evaluate decides inclusion for one record, called once per record in
// ascending global-index order. stop=true means no later record can be
// included: either the limit is reached or the index passed the upper
// bound, which is final because indices are strictly increasing.
func (s *Selector) Evaluate(index int64, rec Record) (include, stop bool) {
	if s.matched >= s.limit {
		return false, true
	}
	if index > s.rng.Upper {
		return false, true
	}
	if index < s.rng.Lower {
		return false, false
	}

	include = s.eq == nil || s.eq.Matches(rec)
	if include {
		s.matched++
	}
	return include, false
}

// Matched reports how many records the selector has included so far.
func (s *Selector) Matched() int64 { return s.matched }
