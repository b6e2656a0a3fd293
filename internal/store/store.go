// Package store persists fetched resources under a categorized layout.
//
// Every backend maps (category, name) to "<category>/<name><ext>" below its
// root and writes each object in one complete step: a reader either sees the
// previous content, the new content, or nothing, never a partial write.
package store

import (
	"context"
	"path"
	"path/filepath"

	ioutils "github.com/handiism/spritefetch/internal/io"
	"github.com/handiism/spritefetch/internal/model"
)

// DefaultExt is the extension given to every stored file.
const DefaultExt = ".png"

// Store writes fetched content to durable storage.
type Store interface {
	// Put stores data for the record identified by category and name.
	Put(ctx context.Context, category, name string, data []byte) error

	// Path returns the location Put writes to for category and name.
	Path(category, name string) string
}

// Cleaner is implemented by stores that can empty their root.
type Cleaner interface {
	Clean(ctx context.Context) error
}

// FileStore stores files on the local filesystem.
//
// Category directories are created on demand with ioutils.EnsureDir, which
// treats an existing directory as success, so concurrent Puts into the same
// category need no locking.
type FileStore struct {
	root  string
	ext   string
	write ioutils.WriteFunc
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithWriteFunc replaces the function that writes file content inside
// the atomic write.
func WithWriteFunc(fn ioutils.WriteFunc) FileStoreOption {
	return func(s *FileStore) { s.write = fn }
}

// NewFileStore creates a FileStore rooted at root. An empty ext uses DefaultExt.
func NewFileStore(root, ext string, opts ...FileStoreOption) *FileStore {
	if ext == "" {
		ext = DefaultExt
	}
	s := &FileStore{root: root, ext: ext}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the store root directory.
func (s *FileStore) Root() string {
	return s.root
}

// Path implements Store.
func (s *FileStore) Path(category, name string) string {
	rec := model.Record{Name: name, Category: category}
	return filepath.Join(s.root, rec.DirName(), rec.FileName(s.ext))
}

// EnsureCategory creates the directory for category if it does not exist.
func (s *FileStore) EnsureCategory(category string) error {
	rec := model.Record{Category: category}
	return ioutils.EnsureDir(filepath.Join(s.root, rec.DirName()))
}

// Put implements Store.
func (s *FileStore) Put(ctx context.Context, category, name string, data []byte) error {
	if err := s.EnsureCategory(category); err != nil {
		return &Error{Key: key(category, name, s.ext), Err: err}
	}
	if err := ioutils.WriteFileAtomic(ctx, s.Path(category, name), data, s.write); err != nil {
		return &Error{Key: key(category, name, s.ext), Err: err}
	}
	return nil
}

// Prepare checks that the root exists and is writable.
func (s *FileStore) Prepare() error {
	return ioutils.CheckWritable(s.root)
}

// Clean implements Cleaner by removing everything under root.
func (s *FileStore) Clean(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ioutils.ResetDir(s.root)
}

// Error is returned by stores when a write fails.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	return "store " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// key returns the slash-separated object key for a record.
func key(category, name, ext string) string {
	rec := model.Record{Name: name, Category: category}
	return path.Join(rec.DirName(), rec.FileName(ext))
}
