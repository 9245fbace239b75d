package trove

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// -----------------------------------------------------------------------------
// Resolution
// -----------------------------------------------------------------------------

func TestResolve_PrefixSelectsVariant(t *testing.T) {
	mem := NewMemory()
	r := NewResolver(mem)

	local, err := r.Resolve("file:/tmp/data")
	if err != nil {
		t.Fatalf("Resolve local: %v", err)
	}
	if local.String() != "/tmp/data" {
		t.Errorf("local location = %q, want /tmp/data", local.String())
	}
	if _, ok := local.fs.(localFS); !ok {
		t.Errorf("file: prefix resolved to %T, want localFS", local.fs)
	}

	dist, err := r.Resolve("buckets/data")
	if err != nil {
		t.Fatalf("Resolve distributed: %v", err)
	}
	if dist.fs != mem {
		t.Errorf("unprefixed path resolved to %T, want the distributed backend", dist.fs)
	}
}

func TestResolve_SchemeSlashes(t *testing.T) {
	r := NewResolver(nil)

	p, err := r.Resolve("file:///var/data")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.String() != "/var/data" {
		t.Errorf("location = %q, want /var/data", p.String())
	}
}

func TestResolve_Errors(t *testing.T) {
	r := NewResolver(nil)

	if _, err := r.Resolve(""); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := r.Resolve("file:"); err == nil {
		t.Error("expected error for empty local path")
	}
	// No distributed backend configured.
	if _, err := r.Resolve("data/store"); err == nil {
		t.Error("expected error for unprefixed path without a distributed backend")
	}
}

func TestPath_Join(t *testing.T) {
	p := NewPath(NewLocal(), "/data/store")

	child := p.Join("sub", "file.avro")
	if child.String() != "/data/store/sub/file.avro" {
		t.Errorf("Join = %q", child.String())
	}
	if child.Base() != "file.avro" {
		t.Errorf("Base = %q", child.Base())
	}
}

// -----------------------------------------------------------------------------
// Local filesystem
// -----------------------------------------------------------------------------

func TestLocalFS_ExistsAndIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := NewLocal()

	exists, err := fs.Exists(context.Background(), file)
	if err != nil || !exists {
		t.Errorf("Exists(file) = %v, %v", exists, err)
	}
	exists, err = fs.Exists(context.Background(), filepath.Join(dir, "missing"))
	if err != nil || exists {
		t.Errorf("Exists(missing) = %v, %v", exists, err)
	}

	isDir, err := fs.IsDir(context.Background(), dir)
	if err != nil || !isDir {
		t.Errorf("IsDir(dir) = %v, %v", isDir, err)
	}
	isDir, err = fs.IsDir(context.Background(), file)
	if err != nil || isDir {
		t.Errorf("IsDir(file) = %v, %v", isDir, err)
	}
	isDir, err = fs.IsDir(context.Background(), filepath.Join(dir, "missing"))
	if err != nil || isDir {
		t.Errorf("IsDir(missing) = %v, %v", isDir, err)
	}
}

func TestLocalFS_OpenWriteMkdirs(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocal()

	target := filepath.Join(dir, "a", "b", "out.txt")

	// Without mkdirs the missing parents are an error.
	if _, err := fs.OpenWrite(context.Background(), target, false); err == nil {
		t.Error("expected error without mkdirs")
	}

	wc, err := fs.OpenWrite(context.Background(), target, true)
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if _, err := wc.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := wc.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(target)
	if err != nil || string(data) != "hello" {
		t.Errorf("read back %q, %v", data, err)
	}
}

func TestLocalFS_OpenReadNotFound(t *testing.T) {
	fs := NewLocal()
	_, err := fs.OpenRead(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalFS_Children(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.avro", "a.avro"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	names, err := NewLocal().Children(context.Background(), dir)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}

	want := []string{"a.avro", "b.avro", "sub/"}
	if len(names) != len(want) {
		t.Fatalf("Children = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Children = %v, want %v", names, want)
		}
	}
}

func TestPathSink_WritesThroughPath(t *testing.T) {
	dir := t.TempDir()
	p := NewPath(NewLocal(), filepath.Join(dir, "out.txt"))

	sink, err := NewPathSink(context.Background(), p, false)
	if err != nil {
		t.Fatalf("NewPathSink: %v", err)
	}
	if _, err := io.WriteString(sink, "payload"); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil || string(data) != "payload" {
		t.Errorf("read back %q, %v", data, err)
	}
}
