package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const tmpSuffix = "~"

// FileAdapter stores one file per database in a directory. Saves write
// "<name>~" first and rename it over the target.
type FileAdapter struct {
	dir         string
	compression Compression

	// serializes writers within the process
	mu sync.Mutex
}

// FileOption configures a FileAdapter
type FileOption func(*FileAdapter)

// WithCompression compresses saved blobs.
func WithCompression(c Compression) FileOption {
	return func(a *FileAdapter) { a.compression = c }
}

// NewFileAdapter creates the directory if needed.
func NewFileAdapter(dir string, opts ...FileOption) (*FileAdapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	a := &FileAdapter{dir: dir}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *FileAdapter) path(name string) string {
	return filepath.Join(a.dir, name)
}

func (a *FileAdapter) LoadDatabase(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(a.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return decompress(data)
}

func (a *FileAdapter) SaveDatabase(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	out, err := compress(data, a.compression)
	if err != nil {
		return fmt.Errorf("failed to compress %s: %w", name, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	tmp := a.path(name) + tmpSuffix
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, a.path(name)); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (a *FileAdapter) DeleteDatabase(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	err := os.Remove(a.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}

// ListDatabases returns the saved names, sorted. Leftover temp files are
// skipped.
func (a *FileAdapter) ListDatabases(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasSuffix(e.Name(), tmpSuffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
