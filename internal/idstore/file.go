// Package idstore persists the procedure identifiers reported by earlier runs.
package idstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/tenderwatch/internal/tender"
)

// FileStore keeps identifiers in a newline-delimited text file that only grows.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("identifier file path is required")
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads every identifier in the file. A missing file yields an empty set.
func (s *FileStore) Load(ctx context.Context) (tender.IDSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled: %w", err)
	}
	// #nosec G304 -- path comes from job configuration.
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tender.IDSet{}, nil
		}
		return nil, fmt.Errorf("open identifier file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	ids := tender.IDSet{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ids.Add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read identifier file: %w", err)
	}
	return ids, nil
}

// Append adds ids to the end of the file without touching existing lines.
func (s *FileStore) Append(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create identifier dir: %w", err)
	}
	// #nosec G304 -- path comes from job configuration.
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open identifier file: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, id := range ids {
		if _, err := w.WriteString(id + "\n"); err != nil {
			_ = f.Close() //nolint:errcheck // primary error wins
			return fmt.Errorf("write identifier: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close() //nolint:errcheck // primary error wins
		return fmt.Errorf("flush identifier file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close identifier file: %w", err)
	}
	return nil
}
