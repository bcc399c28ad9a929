// Package store persists engine state as JSON files. Every write goes to a
// temporary file in the same directory and is renamed into place, so a
// crash leaves either the old file or the new one.
package store

import (
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// File is one atomically written JSON record of type T.
type File[T any] struct {
	path string
}

func NewFile[T any](path string) *File[T] {
	return &File[T]{path: path}
}

func (f *File[T]) Path() string { return f.path }

// Load reads the record. A missing file returns ok=false and no error.
func (f *File[T]) Load() (v T, ok bool, err error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return v, false, nil
	}
	if err != nil {
		return v, false, errors.Wrapf(err, "read %s", f.path)
	}
	if err := sonic.ConfigStd.Unmarshal(data, &v); err != nil {
		return v, false, errors.Wrapf(err, "decode %s", f.path)
	}
	return v, true, nil
}

// Save replaces the record with v.
func (f *File[T]) Save(v T) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", f.path)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create state dir")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	name := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(name)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(name, f.path); err != nil {
		return errors.Wrapf(err, "rename into %s", f.path)
	}
	committed = true

	// Persist the rename itself. Not every platform can sync a directory.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
