// Package ioutils provides file system utilities for spritefetch.
//
// This package contains functions for:
//   - Atomic file writing
//   - Directory creation and removal
//
// All functions that accept a context.Context check it before doing any
// work, though file operations themselves are not interruptible.
package ioutils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFunc writes the full content to w. It is the single step of
// WriteFileAtomic that touches file content, and tests replace it to
// simulate writes that fail mid-stream.
type WriteFunc func(w io.Writer, data []byte) error

// writeAll is the default WriteFunc.
func writeAll(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}

// WriteFileAtomic writes data to path so that readers never observe a
// partially written file under the final name.
//
// The content is written to a temporary file in the same directory,
// synced and closed, then renamed over path. On any failure the temporary
// file is removed and path is left untouched.
//
// Concurrent writers to the same path race, but the rename is atomic, so
// the surviving file is always one complete write.
//
// Example:
//
//	err := WriteFileAtomic(ctx, "/out/grass/bulbasaur.png", data, nil)
func WriteFileAtomic(ctx context.Context, path string, data []byte, write WriteFunc) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if write == nil {
		write = writeAll
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+base+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err = write(tmp, data); err != nil {
		return fmt.Errorf("write %s: %w", base, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", base, err)
	}
	if err = tmp.Chmod(0644); err != nil {
		return fmt.Errorf("chmod %s: %w", base, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", base, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", base, err)
	}
	return nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned, including when
// another goroutine or process creates it concurrently.
//
// Example:
//
//	err := EnsureDir("/out/grass")
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		// MkdirAll can lose a race against a concurrent creator on some
		// platforms; an existing directory is still a success.
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			return nil
		}
		return err
	}
	return nil
}

// RemoveDir removes a directory and everything below it if it exists.
func RemoveDir(path string) error {
	err := os.RemoveAll(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ResetDir removes path and recreates it empty.
func ResetDir(path string) error {
	if err := RemoveDir(path); err != nil {
		return err
	}
	return EnsureDir(path)
}

// CheckWritable verifies that dir exists (creating it if needed) and that
// a file can be created in it.
func CheckWritable(dir string) error {
	if err := EnsureDir(dir); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
