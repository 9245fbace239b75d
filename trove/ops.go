package trove

import (
	"context"
	"fmt"

	"github.com/hamba/avro/v2/ocf"
	jsoniter "github.com/json-iterator/go"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// All operations share one pattern: open the store, pull records through a
// selector-filtered forward pass until it says stop, act on the included
// records, and release every resource on every exit path.

// scan drives one selector-filtered pass, invoking fn for each included
// record. The pass ends at the first stop signal, the end of the sequence,
// or the first error.
func scan(ctx context.Context, store *DataStore, sel *Selector, fn func(index int64, rec Record) error) error {
	cur := store.Records(ctx)
	defer func() { _ = cur.Close() }()

	for cur.Next(ctx) {
		include, stop := sel.Evaluate(cur.Index(), cur.Record())
		if stop {
			break
		}
		if !include {
			continue
		}
		if err := fn(cur.Index(), cur.Record()); err != nil {
			return err
		}
	}
	return cur.Err()
}

// sinkWrite writes to a sink, mapping failures to ErrSinkWrite so the
// caller aborts the remaining pass.
func sinkWrite(sink Sink, data []byte) error {
	if _, err := sink.Write(data); err != nil {
		return fmt.Errorf("trove: %w: %v", ErrSinkWrite, err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// GetSchema
// -----------------------------------------------------------------------------

// GetSchema writes the store's effective schema document to the sink. The
// selector plays no part here.
func GetSchema(ctx context.Context, store *DataStore, sink Sink) error {
	schema, err := store.Schema(ctx)
	if err != nil {
		return err
	}
	return sinkWrite(sink, []byte(schema.String()+"\n"))
}

// -----------------------------------------------------------------------------
// Count
// -----------------------------------------------------------------------------

// Count returns the number of records the selector includes.
func Count(ctx context.Context, store *DataStore, sel *Selector) (int64, error) {
	var n int64
	err := scan(ctx, store, sel, func(int64, Record) error {
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// ToJSON
// -----------------------------------------------------------------------------

// ToJSON emits the included records as JSON: one object per line, with
// binary-valued fields rendered as base64 text. Pretty mode instead emits a
// single JSON document holding all included records as an indented array.
func ToJSON(ctx context.Context, store *DataStore, sel *Selector, sink Sink, pretty bool) error {
	if pretty {
		var records []Record
		err := scan(ctx, store, sel, func(_ int64, rec Record) error {
			records = append(records, rec)
			return nil
		})
		if err != nil {
			return err
		}
		if records == nil {
			records = []Record{}
		}
		data, err := jsonCodec.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("trove: encoding records: %w", err)
		}
		return sinkWrite(sink, append(data, '\n'))
	}

	return scan(ctx, store, sel, func(_ int64, rec Record) error {
		data, err := jsonCodec.Marshal(rec)
		if err != nil {
			return fmt.Errorf("trove: encoding record: %w", err)
		}
		return sinkWrite(sink, append(data, '\n'))
	})
}

// -----------------------------------------------------------------------------
// Copy
// -----------------------------------------------------------------------------

// copyShardName is the single output shard written by Copy. Single-shard
// output is the simplest layout satisfying the round-trip contract.
const copyShardName = "part-00000.avro"

// copyConfig holds the resolved configuration for a Copy.
type copyConfig struct {
	codec  ocf.CodecName
	mkdirs bool
}

// CopyOption configures Copy.
type CopyOption func(*copyConfig)

// WithContainerCodec selects the block codec of the output container file:
// "null", "deflate", "snappy", or "zstandard". Default: null.
func WithContainerCodec(name string) CopyOption {
	return func(cfg *copyConfig) {
		cfg.codec = ocf.CodecName(name)
	}
}

// WithMkdirs creates missing intermediate directories for the output path.
func WithMkdirs() CopyOption {
	return func(cfg *copyConfig) {
		cfg.mkdirs = true
	}
}

// Copy writes the included records into a new single-shard store at the
// output directory, preserving the effective schema. The output is itself a
// valid store that this same engine can read; re-reading it assigns global
// indices 0..n-1 in the preserved order.
func Copy(ctx context.Context, store *DataStore, sel *Selector, out Path, opts ...CopyOption) error {
	cfg := &copyConfig{codec: ocf.Null}
	for _, opt := range opts {
		opt(cfg)
	}
	switch cfg.codec {
	case ocf.Null, ocf.Deflate, ocf.Snappy, ocf.ZStandard:
	default:
		return fmt.Errorf("trove: unknown container codec %q", cfg.codec)
	}

	schema, err := store.Schema(ctx)
	if err != nil {
		return err
	}

	wc, err := out.Join(copyShardName).OpenWrite(ctx, cfg.mkdirs)
	if err != nil {
		return fmt.Errorf("trove: opening output shard: %w", err)
	}

	enc, err := ocf.NewEncoder(schema.String(), wc, ocf.WithCodec(cfg.codec))
	if err != nil {
		_ = wc.Close()
		return fmt.Errorf("trove: creating output shard: %w", err)
	}

	scanErr := scan(ctx, store, sel, func(_ int64, rec Record) error {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("trove: %w: %v", ErrSinkWrite, err)
		}
		return nil
	})
	if scanErr != nil {
		_ = wc.Close()
		return scanErr
	}

	if err := enc.Flush(); err != nil {
		_ = wc.Close()
		return fmt.Errorf("trove: %w: %v", ErrSinkWrite, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("trove: %w: %v", ErrSinkWrite, err)
	}
	return nil
}
