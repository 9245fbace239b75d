package trove

import (
	"context"
	"fmt"
	"io"
	"os"
)

// -----------------------------------------------------------------------------
// Writer sink
// -----------------------------------------------------------------------------

// writerSink adapts a plain writer into a Sink. Close is a no-op; the
// writer's lifetime is the caller's concern.
type writerSink struct {
	w io.Writer
}

// NewWriterSink wraps an existing writer as a Sink.
func NewWriterSink(w io.Writer) Sink {
	return &writerSink{w: w}
}

// NewStdoutSink returns a Sink over the process's standard output.
func NewStdoutSink() Sink {
	return NewWriterSink(os.Stdout)
}

func (s *writerSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *writerSink) Close() error { return nil }

// -----------------------------------------------------------------------------
// Path sink
// -----------------------------------------------------------------------------

// pathSink writes to a file opened through the Path abstraction.
type pathSink struct {
	wc io.WriteCloser
}

// NewPathSink opens a file sink at the given path. When mkdirs is true,
// missing intermediate directories are created.
func NewPathSink(ctx context.Context, p Path, mkdirs bool) (Sink, error) {
	wc, err := p.OpenWrite(ctx, mkdirs)
	if err != nil {
		return nil, fmt.Errorf("trove: opening sink %s: %w", p, err)
	}
	return &pathSink{wc: wc}, nil
}

func (s *pathSink) Write(p []byte) (int, error) { return s.wc.Write(p) }

func (s *pathSink) Close() error { return s.wc.Close() }

// -----------------------------------------------------------------------------
// Compressed sink
// -----------------------------------------------------------------------------

// compressedSink layers a Compressor over another sink. Close flushes the
// compressed stream before closing the underlying sink.
type compressedSink struct {
	wc   io.WriteCloser
	next Sink
}

// NewCompressedSink wraps a sink with a compressor.
func NewCompressedSink(next Sink, c Compressor) (Sink, error) {
	wc, err := c.Compress(next)
	if err != nil {
		return nil, err
	}
	return &compressedSink{wc: wc, next: next}, nil
}

func (s *compressedSink) Write(p []byte) (int, error) { return s.wc.Write(p) }

func (s *compressedSink) Close() error {
	if err := s.wc.Close(); err != nil {
		_ = s.next.Close()
		return err
	}
	return s.next.Close()
}
