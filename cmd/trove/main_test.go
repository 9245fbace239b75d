package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/justapithecus/trove/trove"
)

func TestNewSink_CompressedFileGetsExtension(t *testing.T) {
	dir := t.TempDir()
	r := trove.NewResolver(nil)

	sink, err := newSink(context.Background(), r, "file:"+filepath.Join(dir, "out.json"), "gzip", false)
	if err != nil {
		t.Fatalf("newSink: %v", err)
	}
	if _, err := io.WriteString(sink, "records"); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "out.json.gz"))
	if err != nil {
		t.Fatalf("compressed sink file missing extension: %v", err)
	}
	defer func() { _ = f.Close() }()

	rc, err := trove.NewGzipCompressor().Decompress(f)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "records" {
		t.Errorf("round trip = %q", got)
	}
}

func TestNewSink_PlainFileKeepsName(t *testing.T) {
	dir := t.TempDir()
	r := trove.NewResolver(nil)

	sink, err := newSink(context.Background(), r, "file:"+filepath.Join(dir, "out.json"), "none", false)
	if err != nil {
		t.Fatalf("newSink: %v", err)
	}
	if _, err := io.WriteString(sink, "{}"); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "out.json")); err != nil {
		t.Errorf("uncompressed sink file: %v", err)
	}
}
