package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets
)

// BlobStore stores objects in a gocloud.dev bucket (file://, mem://, and
// any other driver registered by the binary, e.g. s3:// or gs://).
//
// A blob.Writer only commits the object when Close succeeds; Put cancels
// the writer's context before closing on any write error, so a failed Put
// never leaves a partial object behind.
type BlobStore struct {
	bucket *blob.Bucket
	url    string
	ext    string
}

// OpenBlobStore opens the bucket at bucketURL. An empty ext uses DefaultExt.
func OpenBlobStore(ctx context.Context, bucketURL, ext string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return NewBlobStore(bucket, bucketURL, ext), nil
}

// NewBlobStore wraps an already open bucket.
func NewBlobStore(bucket *blob.Bucket, bucketURL, ext string) *BlobStore {
	if ext == "" {
		ext = DefaultExt
	}
	return &BlobStore{bucket: bucket, url: bucketURL, ext: ext}
}

// Path implements Store. It returns the object key.
func (s *BlobStore) Path(category, name string) string {
	return key(category, name, s.ext)
}

// Put implements Store.
func (s *BlobStore) Put(ctx context.Context, category, name string, data []byte) error {
	k := s.Path(category, name)

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.bucket.NewWriter(wctx, k, &blob.WriterOptions{
		ContentType: contentType(s.ext),
	})
	if err != nil {
		return &Error{Key: k, Err: err}
	}

	if _, err := w.Write(data); err != nil {
		cancel()
		_ = w.Close()
		return &Error{Key: k, Err: err}
	}
	if err := w.Close(); err != nil {
		return &Error{Key: k, Err: err}
	}
	return nil
}

// Prepare verifies the bucket is reachable.
func (s *BlobStore) Prepare(ctx context.Context) error {
	if _, err := s.bucket.IsAccessible(ctx); err != nil {
		return fmt.Errorf("bucket %s: %w", s.url, err)
	}
	return nil
}

// Clean implements Cleaner by deleting every object in the bucket.
func (s *BlobStore) Clean(ctx context.Context) error {
	iter := s.bucket.List(nil)
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if obj.IsDir {
			continue
		}
		if err := s.bucket.Delete(ctx, obj.Key); err != nil {
			return fmt.Errorf("delete %s: %w", obj.Key, err)
		}
	}
}

// Keys lists every object key in the bucket.
func (s *BlobStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.bucket.List(nil)
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return keys, nil
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, obj.Key)
	}
}

// Close closes the bucket.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

// IsBucketURL reports whether location names a bucket rather than a
// filesystem path.
func IsBucketURL(location string) bool {
	return strings.Contains(location, "://")
}

func contentType(ext string) string {
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
