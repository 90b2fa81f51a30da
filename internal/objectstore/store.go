// Package objectstore moves file bytes in and out of bucketed object storage.
// Backends: the Supabase Storage REST API, any S3-compatible endpoint, and an
// in-memory store for tests.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mowakeb/internal/config"
)

var ErrNotFound = errors.New("object not found")

type UploadOptions struct {
	ContentType string
	// Overwrite replaces an existing object at the same key. When false an
	// existing object makes Upload fail.
	Overwrite bool
}

type Store interface {
	Upload(ctx context.Context, bucket, key string, data []byte, opts UploadOptions) error
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	Remove(ctx context.Context, bucket string, keys ...string) error
}

// Options selects and configures a backend for New.
type Options struct {
	Backend string

	SupabaseURL string
	SupabaseKey string

	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

func New(opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", "supabase":
		return NewSupabaseStore(opts.SupabaseURL, opts.SupabaseKey), nil
	case "s3":
		return NewS3Store(opts.S3Endpoint, opts.S3Region, opts.S3AccessKeyID, opts.S3SecretAccessKey), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", opts.Backend)
	}
}

// FromConfig builds the backend selected by MOWAKEB_STORAGE_BACKEND. Call
// cfg.ValidateStorage first.
func FromConfig(cfg config.Config) (Store, error) {
	return New(Options{
		Backend:           cfg.StorageBackend,
		SupabaseURL:       cfg.SupabaseURL,
		SupabaseKey:       cfg.SupabaseServiceRoleKey,
		S3Endpoint:        cfg.S3Endpoint,
		S3Region:          cfg.S3Region,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
	})
}
