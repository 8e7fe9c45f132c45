package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend stores the record as JSON in "<dir>/<namespace>.json".
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend for namespace under dir.
func NewFileBackend(dir, namespace string) *FileBackend {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &FileBackend{path: filepath.Join(dir, namespace+".json")}
}

// Path returns the file the record lives in.
func (f *FileBackend) Path() string {
	return f.path
}

// Read implements Backend. A missing file is an empty record.
func (f *FileBackend) Read(ctx context.Context) (Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, nil
		}
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return rec, nil
}

// Write implements Backend. The file is replaced atomically (temp file then
// rename).
func (f *FileBackend) Write(ctx context.Context, rec Record) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Clear implements Backend.
func (f *FileBackend) Clear(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
