// Package parquet provides the row layouts and part-file IO of the append-only
// columnar store using github.com/parquet-go/parquet-go.
package parquet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
)

// PartExt is the file extension of every part file.
const PartExt = ".parquet"

// Versioned is a row that can be deduplicated by natural key, keeping the greatest version.
type Versioned interface {
	Key() string
	Version() time.Time
}

// WritePart writes rows to a new part file at path. The file is written under a
// temporary name and renamed into place so readers never see a partial part.
func WritePart[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create table directory: %w", err)
	}
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	// The schema is derived from the struct tags of T
	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(rows); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close parquet file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to publish part file: %w", err)
	}
	return nil
}

// ReadParts reads every part file of dir in name order. A missing directory holds no rows.
func ReadParts[T any](dir string) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), PartExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []T
	for _, name := range names {
		rows, err := parquet.ReadFile[T](filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read part %s: %w", name, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

// Latest keeps, per key, the row with the greatest version. Ties go to the row read last.
// The result is ordered by key.
func Latest[T Versioned](rows []T) []T {
	best := make(map[string]T, len(rows))
	for _, r := range rows {
		cur, ok := best[r.Key()]
		if !ok || !r.Version().Before(cur.Version()) {
			best[r.Key()] = r
		}
	}
	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, best[k])
	}
	return out
}

// ParseID parses a stored repository id, returning uuid.Nil for malformed values.
func ParseID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func timePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
