package trove

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// localScheme is the literal prefix selecting the local filesystem.
// Paths without the prefix resolve against the distributed backend.
const localScheme = "file:"

// -----------------------------------------------------------------------------
// Resolver
// -----------------------------------------------------------------------------

// Resolver turns user-supplied path text into Path handles. A "file:" prefix
// (with optional "//") selects the local filesystem; any other text resolves
// against the distributed backend supplied at construction.
type Resolver struct {
	local       FileSystem
	distributed FileSystem
}

// NewResolver creates a Resolver backed by the local filesystem and the
// given distributed backend. The distributed backend may be nil, in which
// case resolving an unprefixed path fails.
func NewResolver(distributed FileSystem) *Resolver {
	return &Resolver{
		local:       NewLocal(),
		distributed: distributed,
	}
}

// Resolve maps path text to a Path handle. It inspects the string only;
// no I/O is performed.
func (r *Resolver) Resolve(text string) (Path, error) {
	if text == "" {
		return Path{}, errors.New("trove: empty path")
	}

	if strings.HasPrefix(text, localScheme) {
		loc := strings.TrimPrefix(text, localScheme)
		loc = strings.TrimPrefix(loc, "//")
		if loc == "" {
			return Path{}, fmt.Errorf("trove: empty local path in %q", text)
		}
		return Path{fs: r.local, loc: loc}, nil
	}

	if r.distributed == nil {
		return Path{}, errors.New("trove: no distributed filesystem configured")
	}
	return Path{fs: r.distributed, loc: strings.TrimPrefix(text, "/")}, nil
}

// -----------------------------------------------------------------------------
// Path
// -----------------------------------------------------------------------------

// Path is a handle over one location in exactly one filesystem variant.
// Immutable once constructed; owned solely by the caller that created it.
type Path struct {
	fs  FileSystem
	loc string
}

// NewPath creates a Path over an explicit filesystem. Resolve is the usual
// entry point; NewPath exists for embedding and tests.
func NewPath(fs FileSystem, loc string) Path {
	return Path{fs: fs, loc: loc}
}

// String returns the location within its filesystem.
func (p Path) String() string { return p.loc }

// Base returns the last element of the location.
func (p Path) Base() string { return path.Base(p.loc) }

// Join returns a Path for a child location on the same filesystem.
func (p Path) Join(elem ...string) Path {
	parts := append([]string{p.loc}, elem...)
	return Path{fs: p.fs, loc: path.Join(parts...)}
}

// Exists checks whether the path exists.
func (p Path) Exists(ctx context.Context) (bool, error) {
	return p.fs.Exists(ctx, p.loc)
}

// IsDir checks whether the path exists and is a directory.
func (p Path) IsDir(ctx context.Context) (bool, error) {
	return p.fs.IsDir(ctx, p.loc)
}

// OpenRead opens the path for sequential reading.
func (p Path) OpenRead(ctx context.Context) (io.ReadCloser, error) {
	return p.fs.OpenRead(ctx, p.loc)
}

// OpenWrite opens the path for writing.
func (p Path) OpenWrite(ctx context.Context, mkdirs bool) (io.WriteCloser, error) {
	return p.fs.OpenWrite(ctx, p.loc, mkdirs)
}

// Children lists the immediate children as Paths, lexicographically ordered.
// Child directories carry a trailing "/" in their name.
func (p Path) Children(ctx context.Context) ([]Path, error) {
	names, err := p.fs.Children(ctx, p.loc)
	if err != nil {
		return nil, err
	}
	children := make([]Path, 0, len(names))
	for _, name := range names {
		children = append(children, Path{fs: p.fs, loc: path.Join(p.loc, strings.TrimSuffix(name, "/"))})
	}
	return children, nil
}

// -----------------------------------------------------------------------------
// Local filesystem
// -----------------------------------------------------------------------------

// localFS implements FileSystem using the local disk.
type localFS struct{}

// NewLocal creates a FileSystem over the local disk.
//
// Consistency: immediate read-after-write.
func NewLocal() FileSystem {
	return localFS{}
}

func (localFS) Exists(_ context.Context, p string) (bool, error) {
	_, err := os.Stat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("trove: stat %s: %w", p, err)
}

func (localFS) IsDir(_ context.Context, p string) (bool, error) {
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("trove: stat %s: %w", p, err)
	}
	return info.IsDir(), nil
}

func (localFS) OpenRead(_ context.Context, p string) (io.ReadCloser, error) {
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("trove: open %s: %w", p, err)
	}
	return f, nil
}

func (localFS) OpenWrite(_ context.Context, p string, mkdirs bool) (io.WriteCloser, error) {
	if mkdirs {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("trove: mkdir %s: %w", filepath.Dir(p), err)
		}
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("trove: create %s: %w", p, err)
	}
	return f, nil
}

func (localFS) Children(_ context.Context, p string) ([]string, error) {
	entries, err := os.ReadDir(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("trove: list %s: %w", p, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	// ReadDir sorts by name already; keep the contract explicit.
	sort.Strings(names)
	return names, nil
}

// -----------------------------------------------------------------------------
// Buffered writer
// -----------------------------------------------------------------------------

// bufferedWriteCloser accumulates writes and commits them on Close.
// Backends without streaming writes (memory, object stores) build on it.
type bufferedWriteCloser struct {
	buf    bytes.Buffer
	commit func(data []byte) error
	closed bool
}

func (b *bufferedWriteCloser) Write(p []byte) (int, error) {
	return b.buf.Write(p)
}

func (b *bufferedWriteCloser) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.commit(b.buf.Bytes())
}
