// Package store provides JSON-file-backed persistence for Docbrief.
//
// Each store owns one file holding a single JSON array of records. Save is
// last-writer-wins by id: the whole collection is loaded, the matching record
// is replaced (or appended), and the whole file is rewritten. A per-store
// mutex serializes the read-modify-write span so concurrent workers in the
// same process cannot drop each other's updates, and the rewrite goes through
// a temp file + rename so readers never observe a torn file.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// checkPath validates a backing path and creates its parent directory.
func checkPath(path string) error {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrPathIsDirectory, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}

// readCollection unmarshals the backing file into out. A missing file is an
// empty collection, not an error.
func readCollection(path string, out any) error {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrPathIsDirectory, path)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read store file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse store file %s: %w", path, err)
	}
	return nil
}

// writeCollection rewrites the backing file atomically.
func writeCollection(path string, records any) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
