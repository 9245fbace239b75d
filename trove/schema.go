package trove

import (
	"context"
	"fmt"
	"io"

	"github.com/hamba/avro/v2"
)

// ocfSchemaKey is the container-file metadata key holding the writer schema.
const ocfSchemaKey = "avro.schema"

// parseSchema parses an Avro schema document.
func parseSchema(doc string) (avro.Schema, error) {
	schema, err := avro.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("trove: %w: %v", ErrInvalidSchema, err)
	}
	return schema, nil
}

// loadSchema reads and parses a schema document through the Path abstraction,
// so the schema file itself may live on either filesystem variant.
func loadSchema(ctx context.Context, p Path) (avro.Schema, error) {
	rc, err := p.OpenRead(ctx)
	if err != nil {
		return nil, fmt.Errorf("trove: reading schema %s: %w", p, err)
	}
	defer func() { _ = rc.Close() }()

	doc, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("trove: reading schema %s: %w", p, err)
	}
	return parseSchema(string(doc))
}

// recordSchema asserts that a schema describes a record.
func recordSchema(schema avro.Schema) (*avro.RecordSchema, error) {
	rs, ok := schema.(*avro.RecordSchema)
	if !ok {
		return nil, fmt.Errorf("trove: %w: schema is not a record", ErrInvalidSchema)
	}
	return rs, nil
}

// fieldSchema looks up the declared schema of a named field. The second
// return is false when the schema is not a record or lacks the field.
func fieldSchema(schema avro.Schema, name string) (avro.Schema, bool) {
	rs, ok := schema.(*avro.RecordSchema)
	if !ok {
		return nil, false
	}
	for _, f := range rs.Fields() {
		if f.Name() == name {
			return f.Type(), true
		}
	}
	return nil, false
}

// projectRecord applies reader-schema field selection to a decoded record:
// reader fields are picked from the record, absent fields take the reader
// declared default. Compatibility of the schemas has already been checked,
// so a missing field without a default is an invalid-schema condition.
func projectRecord(rec Record, reader *avro.RecordSchema) (Record, error) {
	out := make(Record, len(reader.Fields()))
	for _, f := range reader.Fields() {
		if v, ok := rec[f.Name()]; ok {
			out[f.Name()] = promoteValue(v, f.Type().Type())
			continue
		}
		if f.HasDefault() {
			out[f.Name()] = f.Default()
			continue
		}
		return nil, fmt.Errorf("trove: %w: no value or default for field %q", ErrInvalidSchema, f.Name())
	}
	return out, nil
}

// promoteValue applies Avro primitive promotion when the reader declares a
// wider type than the writer wrote: int to long, int and long to float or
// double, float to double, and string and bytes interchangeably. Values
// already of the target type pass through unchanged.
func promoteValue(v any, target avro.Type) any {
	switch target {
	case avro.Long:
		if n, ok := intValue(v); ok {
			return n
		}
	case avro.Float:
		if n, ok := intValue(v); ok {
			return float32(n)
		}
	case avro.Double:
		if n, ok := intValue(v); ok {
			return float64(n)
		}
		if f, ok := v.(float32); ok {
			return float64(f)
		}
	case avro.Bytes:
		if s, ok := v.(string); ok {
			return []byte(s)
		}
	case avro.String:
		if b, ok := v.([]byte); ok {
			return string(b)
		}
	}
	return v
}
