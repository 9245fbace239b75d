// Package trove inspects and selectively transforms directories of Avro
// object-container-file shards.
//
// A trove is a plain directory holding one or more Avro container files.
// The directory is treated as a single logical sequence of records: shards
// are ordered lexicographically by name and concatenated, and every record
// gets a stable zero-based global index within that sequence.
//
// Trove focuses on traversal and selection: open a store, scan it forward
// once through a composable selector (index range, field equality, result
// limit), and feed the included records to a terminal operation. It does not
// implement query planning, joins, or schema evolution beyond standard Avro
// reader-schema projection.
package trove

import (
	"context"
	"errors"
	"io"
)

// Record is one decoded Avro record, keyed by field name.
type Record map[string]any

// -----------------------------------------------------------------------------
// FileSystem
// -----------------------------------------------------------------------------

// FileSystem is the capability set the store and operations use to touch
// storage. Implementations target the local filesystem, S3-compatible object
// stores, or memory; nothing above this interface performs filesystem calls
// directly, so backends are swappable without touching traversal logic.
type FileSystem interface {
	// Exists checks whether a path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// IsDir checks whether a path exists and is a directory.
	IsDir(ctx context.Context, path string) (bool, error)

	// OpenRead opens the path for sequential reading.
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)

	// OpenWrite opens the path for writing, truncating any existing content.
	// When mkdirs is true, missing intermediate directories are created.
	OpenWrite(ctx context.Context, path string, mkdirs bool) (io.WriteCloser, error)

	// Children returns the names of the immediate children of a directory.
	// Names are relative to the directory and sorted lexicographically.
	// Directories are suffixed with "/".
	Children(ctx context.Context, path string) ([]string, error)
}

// -----------------------------------------------------------------------------
// Sink
// -----------------------------------------------------------------------------

// Sink receives operation output. One concrete sink writes to standard
// output, another to a file opened through the Path abstraction. A sink is
// exclusively owned by the single active operation for one invocation.
type Sink interface {
	io.Writer

	// Close releases the sink. Closing the stdout sink is a no-op.
	Close() error
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound indicates a requested path does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotADirectory indicates a store path that exists but is not a directory.
	ErrNotADirectory = errors.New("not a directory")

	// ErrUnreachable indicates the filesystem backend could not be reached.
	// Distinct from ErrNotFound: this is a connectivity failure, not a
	// normal absence.
	ErrUnreachable = errors.New("filesystem unreachable")

	// ErrInvalidSchema indicates a reader schema that fails to parse or
	// cannot be resolved against a shard's writer schema.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrInvalidRange indicates malformed index range text.
	ErrInvalidRange = errors.New("invalid index range")

	// ErrInvalidLimit indicates a malformed or negative result limit.
	ErrInvalidLimit = errors.New("invalid limit")

	// ErrInvalidEquality indicates malformed FIELD=VALUE selection text.
	ErrInvalidEquality = errors.New("invalid equality selection")

	// ErrFieldNotFound indicates an extract target absent from the schema.
	ErrFieldNotFound = errors.New("field not found")

	// ErrInvalidPath indicates record data that cannot be used as a path
	// element (empty, dot-dot, or containing separators).
	ErrInvalidPath = errors.New("invalid path element")

	// ErrSinkWrite indicates a failed write to the output sink. The
	// remaining pass is aborted; partial output is not rolled back.
	ErrSinkWrite = errors.New("sink write failed")
)
