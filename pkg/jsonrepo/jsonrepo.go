// Package jsonrepo provides the durable-log primitives shared by the
// conversation and summary logs: a single JSON array per file, read in
// full and rewritten in full on every append.
package jsonrepo

import (
	"encoding/json"
	"os"
	"path/filepath"

	apperrors "github.com/931405/mem1/pkg/errors"
	"github.com/931405/mem1/pkg/log"
)

// Append reads the array at path, appends item, and rewrites the file.
// A missing or malformed file is treated as an empty array. The
// read-append-rewrite cycle is not atomic; callers that append from
// multiple goroutines must serialize their Append calls per file.
func Append[T any](path string, item T) error {
	items, err := LoadAll[T](path)
	if err != nil {
		// Unreadable or corrupt content starts a fresh list, matching the
		// append-only contract: a bad log must not block new writes.
		log.Debug("starting new list for append", "path", path, "error", err)
		items = nil
	}
	items = append(items, item)
	return WriteAll(path, items)
}

// LoadAll decodes the whole array at path. A missing file yields an empty
// slice and no error.
func LoadAll[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrStorage, "read %s failed: %v", path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "decode %s failed: %v", path, err)
	}
	return items, nil
}

// WriteAll rewrites path with the full array. The write goes to a temp file
// in the same directory first and is renamed into place, so a crash mid-write
// leaves the previous contents intact.
func WriteAll[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "encode %s failed: %v", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "create directory %s failed: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "create temp file in %s failed: %v", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.ErrStorage, "write %s failed: %v", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.ErrStorage, "close %s failed: %v", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.ErrStorage, "rename %s failed: %v", tmpName, err)
	}
	return nil
}

// LoadRecent returns up to n most recent items matching match, oldest-first.
// The scan runs from the end of the array backward, mirroring how "recent"
// is defined for an append-only log. A malformed file yields an empty slice.
func LoadRecent[T any](path string, n int, match func(T) bool) ([]T, error) {
	items, err := LoadAll[T](path)
	if err != nil {
		log.Warn("failed to load recent items", "path", path, "error", err)
		return nil, nil
	}

	var matched []T
	for i := len(items) - 1; i >= 0 && len(matched) < n; i-- {
		if match(items[i]) {
			matched = append(matched, items[i])
		}
	}

	// Reverse so the oldest comes first.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched, nil
}

// LoadLast returns the most recent item matching match, scanning backward.
func LoadLast[T any](path string, match func(T) bool) (T, bool, error) {
	var zero T
	items, err := LoadAll[T](path)
	if err != nil {
		log.Warn("failed to load last item", "path", path, "error", err)
		return zero, false, nil
	}
	for i := len(items) - 1; i >= 0; i-- {
		if match(items[i]) {
			return items[i], true, nil
		}
	}
	return zero, false, nil
}
