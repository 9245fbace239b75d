package trove

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"
)

// ErrEmptyStore indicates a store directory that contains no shards where
// one is required (schema introspection without a reader schema).
var ErrEmptyStore = errors.New("store contains no shards")

// -----------------------------------------------------------------------------
// Open options
// -----------------------------------------------------------------------------

// openConfig holds the resolved configuration for a store.
type openConfig struct {
	readerDoc  string
	readerPath *Path
}

// OpenOption configures store construction.
type OpenOption func(*openConfig)

// WithReaderSchema supplies an Avro schema document used to project records
// during decoding, resolved against each shard's writer schema.
func WithReaderSchema(doc string) OpenOption {
	return func(cfg *openConfig) {
		cfg.readerDoc = doc
	}
}

// WithReaderSchemaPath loads the reader schema document from a Path.
func WithReaderSchemaPath(p Path) OpenOption {
	return func(cfg *openConfig) {
		cfg.readerPath = &p
	}
}

// -----------------------------------------------------------------------------
// DataStore
// -----------------------------------------------------------------------------

// DataStore is a directory of Avro container-file shards exposed as one
// logical, ordered record sequence. Shards are ordered lexicographically by
// name and concatenated; a record's global index is the running count of
// records yielded by earlier shards plus its intra-shard position. The
// ordering is stable across repeated traversals of an unmodified directory.
//
// A DataStore is read-only; no operation mutates it.
type DataStore struct {
	dir    Path
	shards []Path

	reader       avro.Schema        // nil when no projection requested
	readerRecord *avro.RecordSchema // reader as record schema, when set
	compat       *avro.SchemaCompatibility

	writer avro.Schema // cached writer schema of the first shard
}

// Open opens a store directory. The directory must exist and be a
// directory; shards are discovered by a single non-recursive listing,
// skipping subdirectories and dotfiles. A supplied reader schema must parse
// and, when the store is non-empty, resolve against the first shard's
// writer schema — both are checked here so a doomed invocation never starts
// a traversal.
func Open(ctx context.Context, dir Path, opts ...OpenOption) (*DataStore, error) {
	cfg := &openConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	exists, err := dir.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("trove: store directory %s: %w", dir, ErrNotFound)
	}
	isDir, err := dir.IsDir(ctx)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, fmt.Errorf("trove: store path %s: %w", dir, ErrNotADirectory)
	}

	names, err := dir.fs.Children(ctx, dir.loc)
	if err != nil {
		return nil, fmt.Errorf("trove: listing store %s: %w", dir, err)
	}
	sort.Strings(names)

	var shards []Path
	for _, name := range names {
		if strings.HasSuffix(name, "/") || strings.HasPrefix(name, ".") {
			continue
		}
		shards = append(shards, dir.Join(name))
	}

	s := &DataStore{
		dir:    dir,
		shards: shards,
	}

	if cfg.readerPath != nil {
		schema, err := loadSchema(ctx, *cfg.readerPath)
		if err != nil {
			return nil, err
		}
		s.reader = schema
	} else if cfg.readerDoc != "" {
		schema, err := parseSchema(cfg.readerDoc)
		if err != nil {
			return nil, err
		}
		s.reader = schema
	}

	if s.reader != nil {
		rs, err := recordSchema(s.reader)
		if err != nil {
			return nil, err
		}
		s.readerRecord = rs
		s.compat = avro.NewSchemaCompatibility()

		if len(s.shards) > 0 {
			writer, err := s.writerSchema(ctx)
			if err != nil {
				return nil, err
			}
			if err := s.compat.Compatible(s.reader, writer); err != nil {
				return nil, fmt.Errorf("trove: %w: reader schema incompatible with %s: %v", ErrInvalidSchema, s.shards[0], err)
			}
		}
	}

	return s, nil
}

// Dir returns the store directory.
func (s *DataStore) Dir() Path { return s.dir }

// Shards returns the discovered shard paths in traversal order.
func (s *DataStore) Shards() []Path { return s.shards }

// Schema returns the store's effective schema: the reader schema when one
// was supplied, else the writer schema embedded in the first shard. All
// shards in one store are assumed schema-compatible.
func (s *DataStore) Schema(ctx context.Context) (avro.Schema, error) {
	if s.reader != nil {
		return s.reader, nil
	}
	return s.writerSchema(ctx)
}

// Records starts a fresh forward pass over the shards. Each call opens a
// new Cursor positioned before the first record.
func (s *DataStore) Records(ctx context.Context) *Cursor {
	_ = ctx // reserved: shard opens take the ctx passed to Next
	return &Cursor{store: s, global: -1}
}

func (s *DataStore) writerSchema(ctx context.Context) (avro.Schema, error) {
	if s.writer != nil {
		return s.writer, nil
	}
	if len(s.shards) == 0 {
		return nil, fmt.Errorf("trove: %s: %w", s.dir, ErrEmptyStore)
	}

	rc, err := s.shards[0].OpenRead(ctx)
	if err != nil {
		return nil, fmt.Errorf("trove: opening shard %s: %w", s.shards[0], err)
	}
	defer func() { _ = rc.Close() }()

	dec, err := ocf.NewDecoder(rc)
	if err != nil {
		return nil, fmt.Errorf("trove: reading shard %s: %w", s.shards[0], err)
	}

	schema, err := decoderSchema(dec)
	if err != nil {
		return nil, fmt.Errorf("trove: shard %s: %w", s.shards[0], err)
	}
	s.writer = schema
	return schema, nil
}

// decoderSchema extracts the writer schema embedded in a container file.
func decoderSchema(dec *ocf.Decoder) (avro.Schema, error) {
	doc, ok := dec.Metadata()[ocfSchemaKey]
	if !ok {
		return nil, fmt.Errorf("%w: container file missing %s metadata", ErrInvalidSchema, ocfSchemaKey)
	}
	schema, err := avro.Parse(string(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return schema, nil
}
