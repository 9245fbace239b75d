// Command trove browses and transforms directories of Avro container-file
// shards, local or on S3-compatible object storage.
//
// Store paths prefixed with "file:" address the local filesystem; all other
// paths address keys inside the configured bucket.
package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/justapithecus/trove/trove"
	s3fs "github.com/justapithecus/trove/trove/s3"
)

type Globals struct {
	Bucket   string `help:"Bucket for distributed paths." env:"TROVE_S3_BUCKET"`
	Region   string `help:"Region for distributed paths." env:"AWS_REGION" default:"us-east-1"`
	Endpoint string `help:"Custom S3 endpoint (MinIO, LocalStack)." env:"TROVE_S3_ENDPOINT"`
}

// resolver builds the Path resolver. The distributed backend is wired only
// when a bucket is configured; local-only usage needs no S3 setup.
func (g *Globals) resolver(ctx context.Context) (*trove.Resolver, error) {
	if g.Bucket == "" {
		return trove.NewResolver(nil), nil
	}

	client, err := s3fs.NewClient(ctx, s3fs.ClientConfig{
		Region:       g.Region,
		Endpoint:     g.Endpoint,
		UsePathStyle: g.Endpoint != "",
	})
	if err != nil {
		return nil, err
	}
	fs, err := s3fs.New(client, s3fs.Config{Bucket: g.Bucket})
	if err != nil {
		return nil, err
	}
	return trove.NewResolver(fs), nil
}

// SelectorFlags are the record-selection options shared by the scanning
// modes. getschema deliberately has none: the option compatibility matrix
// is expressed by which commands embed which flag structs.
type SelectorFlags struct {
	Range  string `help:"Record index range: N, N-M, -M, or N-." placeholder:"SPEC"`
	Filter string `help:"Field equality selection." placeholder:"FIELD=VALUE"`
	Limit  string `help:"Maximum number of records to select." placeholder:"N"`
}

type StoreFlags struct {
	Store  string `arg:"" help:"Store directory (file: prefix for local paths)."`
	Schema string `help:"Reader schema file used to project records." placeholder:"PATH"`
}

// openStore resolves the store path and opens it with the optional reader
// schema; the selector is built against the effective schema. Everything
// that can fail is validated here, before any traversal begins.
func openStore(ctx context.Context, r *trove.Resolver, sf StoreFlags, self SelectorFlags) (*trove.DataStore, *trove.Selector, error) {
	dir, err := r.Resolve(sf.Store)
	if err != nil {
		return nil, nil, err
	}

	var opts []trove.OpenOption
	if sf.Schema != "" {
		schemaPath, err := r.Resolve(sf.Schema)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, trove.WithReaderSchemaPath(schemaPath))
	}

	store, err := trove.Open(ctx, dir, opts...)
	if err != nil {
		return nil, nil, err
	}

	rng, err := trove.ParseRange(self.Range)
	if err != nil {
		return nil, nil, err
	}
	limit, err := trove.ParseLimit(self.Limit)
	if err != nil {
		return nil, nil, err
	}

	var eq *trove.Equality
	if self.Filter != "" {
		// An empty store has no schema and no records. The filter text
		// still must parse; it just can never match anything.
		schema, err := store.Schema(ctx)
		if err != nil && !errors.Is(err, trove.ErrEmptyStore) {
			return nil, nil, err
		}
		eq, err = trove.ParseEquality(self.Filter, schema)
		if err != nil {
			return nil, nil, err
		}
	}

	return store, trove.NewSelector(rng, eq, limit), nil
}

// newSink opens the output sink: stdout when no output path is given, a
// file through the Path abstraction otherwise, optionally compressed.
// Compressed file sinks get the compressor's extension appended.
func newSink(ctx context.Context, r *trove.Resolver, output, compress string, mkdirs bool) (trove.Sink, error) {
	var comp trove.Compressor
	switch compress {
	case "", "none":
	case "gzip":
		comp = trove.NewGzipCompressor()
	case "zstd":
		comp = trove.NewZstdCompressor()
	default:
		return nil, fmt.Errorf("unknown compressor %q", compress)
	}

	var sink trove.Sink
	if output == "" {
		sink = trove.NewStdoutSink()
	} else {
		if comp != nil {
			output += comp.Extension()
		}
		p, err := r.Resolve(output)
		if err != nil {
			return nil, err
		}
		sink, err = trove.NewPathSink(ctx, p, mkdirs)
		if err != nil {
			return nil, err
		}
	}

	if comp == nil {
		return sink, nil
	}
	return trove.NewCompressedSink(sink, comp)
}

// -----------------------------------------------------------------------------
// Commands
// -----------------------------------------------------------------------------

type getSchemaCmd struct {
	StoreFlags
	Output string `help:"Write the schema document to a file instead of stdout." placeholder:"PATH"`
}

func (c *getSchemaCmd) Run(g *Globals) error {
	ctx := context.Background()
	r, err := g.resolver(ctx)
	if err != nil {
		return err
	}

	store, err := openStoreOnly(ctx, r, c.StoreFlags)
	if err != nil {
		return err
	}
	sink, err := newSink(ctx, r, c.Output, "", false)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	if err := trove.GetSchema(ctx, store, sink); err != nil {
		return err
	}
	return sink.Close()
}

func openStoreOnly(ctx context.Context, r *trove.Resolver, sf StoreFlags) (*trove.DataStore, error) {
	store, _, err := openStore(ctx, r, sf, SelectorFlags{})
	return store, err
}

type toJSONCmd struct {
	StoreFlags
	SelectorFlags
	Output   string `help:"Write JSON to a file instead of stdout." placeholder:"PATH"`
	Pretty   bool   `help:"Emit one pretty-printed JSON array instead of one object per line."`
	Compress string `help:"Compress the output: none, gzip, or zstd." enum:"none,gzip,zstd" default:"none"`
}

func (c *toJSONCmd) Run(g *Globals) error {
	ctx := context.Background()
	r, err := g.resolver(ctx)
	if err != nil {
		return err
	}

	store, sel, err := openStore(ctx, r, c.StoreFlags, c.SelectorFlags)
	if err != nil {
		return err
	}
	sink, err := newSink(ctx, r, c.Output, c.Compress, false)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	if err := trove.ToJSON(ctx, store, sel, sink, c.Pretty); err != nil {
		return err
	}
	return sink.Close()
}

type copyCmd struct {
	StoreFlags
	SelectorFlags
	Output string `arg:"" help:"Directory for the new store."`
	Codec  string `help:"Container codec for the output shard." enum:"null,deflate,snappy,zstandard" default:"null"`
	Mkdirs bool   `help:"Create missing output directories."`
}

func (c *copyCmd) Run(g *Globals) error {
	ctx := context.Background()
	r, err := g.resolver(ctx)
	if err != nil {
		return err
	}

	store, sel, err := openStore(ctx, r, c.StoreFlags, c.SelectorFlags)
	if err != nil {
		return err
	}
	out, err := r.Resolve(c.Output)
	if err != nil {
		return err
	}

	opts := []trove.CopyOption{trove.WithContainerCodec(c.Codec)}
	if c.Mkdirs {
		opts = append(opts, trove.WithMkdirs())
	}
	return trove.Copy(ctx, store, sel, out, opts...)
}

type extractCmd struct {
	StoreFlags
	SelectorFlags
	Field     string `arg:"" help:"Field to extract from each record."`
	Output    string `help:"Directory receiving one file per record." placeholder:"PATH"`
	NameField string `help:"Field whose value names each output file." placeholder:"FIELD"`
	Mkdirs    bool   `help:"Group records by name-field value into subdirectories (requires --output and --name-field)."`
	Compress  string `help:"Compress streamed output: none, gzip, or zstd. Ignored with --output." enum:"none,gzip,zstd" default:"none"`
}

func (c *extractCmd) Run(g *Globals) error {
	ctx := context.Background()
	r, err := g.resolver(ctx)
	if err != nil {
		return err
	}

	store, sel, err := openStore(ctx, r, c.StoreFlags, c.SelectorFlags)
	if err != nil {
		return err
	}

	var opts []trove.ExtractOption
	if c.NameField != "" {
		opts = append(opts, trove.WithNameField(c.NameField))
	}

	// Streamed mode: values go to stdout, optionally compressed.
	if c.Output == "" {
		sink, err := newSink(ctx, r, "", c.Compress, false)
		if err != nil {
			return err
		}
		defer func() { _ = sink.Close() }()

		opts = append(opts, trove.WithExtractSink(sink))
		if err := trove.Extract(ctx, store, sel, c.Field, opts...); err != nil {
			return err
		}
		return sink.Close()
	}

	out, err := r.Resolve(c.Output)
	if err != nil {
		return err
	}
	opts = append(opts, trove.WithOutputDir(out))
	if c.Mkdirs {
		opts = append(opts, trove.WithGroupDirs())
	}
	return trove.Extract(ctx, store, sel, c.Field, opts...)
}

type countCmd struct {
	StoreFlags
	SelectorFlags
}

func (c *countCmd) Run(g *Globals) error {
	ctx := context.Background()
	r, err := g.resolver(ctx)
	if err != nil {
		return err
	}

	store, sel, err := openStore(ctx, r, c.StoreFlags, c.SelectorFlags)
	if err != nil {
		return err
	}
	n, err := trove.Count(ctx, store, sel)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

// -----------------------------------------------------------------------------
// Entry point
// -----------------------------------------------------------------------------

var cli struct {
	Globals

	GetSchema getSchemaCmd `cmd:"" name:"getschema" help:"Print the store's effective schema."`
	ToJSON    toJSONCmd    `cmd:"" name:"tojson" help:"Project selected records as JSON."`
	Copy      copyCmd      `cmd:"" help:"Copy selected records into a new store."`
	Extract   extractCmd   `cmd:"" help:"Extract one field from selected records."`
	Count     countCmd     `cmd:"" help:"Count selected records."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("trove"),
		kong.Description("Inspect and transform directories of Avro container-file shards."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(kctx.Run(&cli.Globals))
}
