package trove

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
)

// memoryFS implements FileSystem using an in-memory map. Directories are
// implicit: a path is a directory when any stored key lives under it.
type memoryFS struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an in-memory FileSystem. It serves as a stand-in
// distributed backend for tests and embedding.
//
// Consistency: immediate. Safe for concurrent use.
func NewMemory() FileSystem {
	return &memoryFS{
		data: make(map[string][]byte),
	}
}

func (m *memoryFS) Exists(_ context.Context, p string) (bool, error) {
	p = normalizeMemPath(p)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.data[p]; ok {
		return true, nil
	}
	return m.hasPrefixLocked(p), nil
}

func (m *memoryFS) IsDir(_ context.Context, p string) (bool, error) {
	p = normalizeMemPath(p)

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.hasPrefixLocked(p), nil
}

func (m *memoryFS) OpenRead(_ context.Context, p string) (io.ReadCloser, error) {
	p = normalizeMemPath(p)

	m.mu.RLock()
	data, ok := m.data[p]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	return io.NopCloser(bytes.NewReader(cp)), nil
}

func (m *memoryFS) OpenWrite(_ context.Context, p string, _ bool) (io.WriteCloser, error) {
	p = normalizeMemPath(p)
	// Intermediate directories are implicit in a key space.
	return &bufferedWriteCloser{
		commit: func(data []byte) error {
			cp := make([]byte, len(data))
			copy(cp, data)
			m.mu.Lock()
			m.data[p] = cp
			m.mu.Unlock()
			return nil
		},
	}, nil
}

func (m *memoryFS) Children(_ context.Context, p string) ([]string, error) {
	p = normalizeMemPath(p)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.hasPrefixLocked(p) {
		return nil, ErrNotFound
	}

	prefix := p + "/"
	if p == "" {
		prefix = ""
	}

	seen := make(map[string]bool)
	var names []string
	for key := range m.data {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		name, _, nested := strings.Cut(rest, "/")
		if nested {
			name += "/"
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}

func (m *memoryFS) hasPrefixLocked(p string) bool {
	if p == "" {
		return true
	}
	prefix := p + "/"
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func normalizeMemPath(p string) string {
	cleaned := path.Clean(strings.TrimPrefix(p, "/"))
	if cleaned == "." {
		return ""
	}
	return cleaned
}
