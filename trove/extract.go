package trove

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// extractConfig holds the resolved configuration for an Extract.
type extractConfig struct {
	output    *Path
	nameField string
	groupDirs bool
	sink      Sink
}

// ExtractOption configures Extract.
type ExtractOption func(*extractConfig)

// WithOutputDir writes one file per included record under the directory
// instead of streaming values to the sink. Files are named by the record's
// global index unless a name field is set.
func WithOutputDir(p Path) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.output = &p
	}
}

// WithNameField derives output file names from the value of the named
// field instead of the global index.
func WithNameField(name string) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.nameField = name
	}
}

// WithGroupDirs groups records sharing a name-field value into a
// subdirectory named after that value, with files inside numbered
// sequentially from zero in encounter order. Requires an output directory
// and a name field.
func WithGroupDirs() ExtractOption {
	return func(cfg *extractConfig) {
		cfg.groupDirs = true
	}
}

// WithExtractSink overrides the destination used when no output directory
// is given. Default: standard output.
func WithExtractSink(sink Sink) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.sink = sink
	}
}

// Extract pulls one named field out of each included record. With no output
// directory, values go to the sink newline-separated (binary values as
// base64 text). With an output directory, each value becomes a standalone
// file holding the raw bytes or the string form of the value.
//
// The target field (and the name field, when given) must exist in the
// effective schema; that is checked before the traversal starts.
func Extract(ctx context.Context, store *DataStore, sel *Selector, field string, opts ...ExtractOption) error {
	cfg := &extractConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.groupDirs && (cfg.output == nil || cfg.nameField == "") {
		return fmt.Errorf("trove: grouped directories require an output directory and a name field")
	}

	schema, err := store.Schema(ctx)
	if err != nil {
		return err
	}
	if _, ok := fieldSchema(schema, field); !ok {
		return fmt.Errorf("trove: %w: %q", ErrFieldNotFound, field)
	}
	if cfg.nameField != "" {
		if _, ok := fieldSchema(schema, cfg.nameField); !ok {
			return fmt.Errorf("trove: %w: name field %q", ErrFieldNotFound, cfg.nameField)
		}
	}

	if cfg.output == nil {
		sink := cfg.sink
		if sink == nil {
			sink = NewStdoutSink()
		}
		return scan(ctx, store, sel, func(_ int64, rec Record) error {
			return sinkWrite(sink, append([]byte(textValue(rec[field])), '\n'))
		})
	}

	seq := make(map[string]int64)
	return scan(ctx, store, sel, func(index int64, rec Record) error {
		var target Path
		mkdirs := false

		switch {
		case cfg.groupDirs:
			group, err := pathElement(rec[cfg.nameField])
			if err != nil {
				return err
			}
			target = cfg.output.Join(group, strconv.FormatInt(seq[group], 10))
			seq[group]++
			mkdirs = true
		case cfg.nameField != "":
			name, err := pathElement(rec[cfg.nameField])
			if err != nil {
				return err
			}
			target = cfg.output.Join(name)
		default:
			target = cfg.output.Join(strconv.FormatInt(index, 10))
		}

		wc, err := target.OpenWrite(ctx, mkdirs)
		if err != nil {
			return fmt.Errorf("trove: %w: %v", ErrSinkWrite, err)
		}
		if _, err := wc.Write(rawValue(rec[field])); err != nil {
			_ = wc.Close()
			return fmt.Errorf("trove: %w: %v", ErrSinkWrite, err)
		}
		if err := wc.Close(); err != nil {
			return fmt.Errorf("trove: %w: %v", ErrSinkWrite, err)
		}
		return nil
	})
}

// pathElement renders a name-field value as exactly one path element.
// Record data becomes part of an output path here, so empty values,
// dot and dot-dot, and values containing separators are rejected: a
// record must not place its file outside the output directory.
func pathElement(v any) (string, error) {
	name := textValue(v)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("trove: %w: name %q derived from record", ErrInvalidPath, name)
	}
	return name, nil
}

// textValue renders a field value for text streams and file names.
func textValue(v any) string {
	if b, ok := v.([]byte); ok {
		return base64.StdEncoding.EncodeToString(b)
	}
	return fmt.Sprint(v)
}

// rawValue renders a field value for standalone files: binary fields keep
// their raw bytes, everything else takes its string form.
func rawValue(v any) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	default:
		return []byte(fmt.Sprint(v))
	}
}
