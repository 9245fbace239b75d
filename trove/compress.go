package trove

import (
	"compress/gzip"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Compressor wraps output streams with compression. Compressors are
// orthogonal to sinks and operations; they exist so large JSON projections
// and extractions can be written compressed.
type Compressor interface {
	// Name returns the compressor identifier (for example, "gzip", "zstd").
	Name() string

	// Extension returns the file extension (for example, ".gz", ".zst").
	Extension() string

	// Compress wraps a writer with compression.
	Compress(w io.Writer) (io.WriteCloser, error)

	// Decompress wraps a reader with decompression.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// -----------------------------------------------------------------------------
// Gzip
// -----------------------------------------------------------------------------

type gzipCompressor struct{}

// NewGzipCompressor creates a gzip compressor.
func NewGzipCompressor() Compressor {
	return &gzipCompressor{}
}

func (g *gzipCompressor) Name() string { return "gzip" }

func (g *gzipCompressor) Extension() string { return ".gz" }

func (g *gzipCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

func (g *gzipCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// -----------------------------------------------------------------------------
// Zstd
// -----------------------------------------------------------------------------

type zstdCompressor struct{}

// NewZstdCompressor creates a zstd compressor. Zstandard gives higher
// ratios and faster decompression than gzip.
func NewZstdCompressor() Compressor {
	return &zstdCompressor{}
}

func (z *zstdCompressor) Name() string { return "zstd" }

func (z *zstdCompressor) Extension() string { return ".zst" }

func (z *zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

func (z *zstdCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return decoder.IOReadCloser(), nil
}
