// Package storage holds per-problem test case sets in object storage.
// Sets are content-addressed JSON documents, so a stored document never
// changes under a key: a submission judged against a key sees exactly
// the bytes the problem referenced when judging started.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/codecrack-oj/apiserver/config"
)

// ObjectStorage defines the object operations common to all backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
}

// New constructs a Storage wrapper for the provided backend.
func New(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// NewFromConfig constructs a Storage with the configured backend.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	switch cfg.Backend {
	case "minio":
		backend, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return New(backend), nil
	case "gcs":
		backend, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return New(backend), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads a test case set document under the given key.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if key == "" {
		return errors.New("object key is required")
	}
	return s.backend.Put(ctx, key, r, size)
}

// Get opens a reader for the document stored under the given key.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, errors.New("object key is required")
	}
	return s.backend.Get(ctx, key)
}

// Delete removes the document stored under the given key.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}
