package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	storage "github.com/supabase-community/storage-go"
)

// SupabaseStore talks to Supabase Storage with a service role key.
//
// storage-go keeps upload options (content type, x-upsert) as client-wide
// headers, so uploads go through their own client under a mutex and reads
// and removes use a second client that never carries them.
type SupabaseStore struct {
	mu       sync.Mutex
	uploader *storage.Client
	client   *storage.Client
}

func NewSupabaseStore(projectURL, serviceRoleKey string) *SupabaseStore {
	endpoint := strings.TrimRight(projectURL, "/") + "/storage/v1"
	headers := map[string]string{"apikey": serviceRoleKey}
	return &SupabaseStore{
		uploader: storage.NewClient(endpoint, serviceRoleKey, headers),
		client:   storage.NewClient(endpoint, serviceRoleKey, headers),
	}
}

func (s *SupabaseStore) Upload(ctx context.Context, bucket, key string, data []byte, opts UploadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := opts.Overwrite

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.uploader.UploadFile(bucket, strings.TrimPrefix(key, "/"), bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, key, storageErr(err))
	}
	return nil
}

func (s *SupabaseStore) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.client.DownloadFile(bucket, strings.TrimPrefix(key, "/"))
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, key, storageErr(err))
	}
	return data, nil
}

// Remove deletes keys from bucket. Keys that do not exist are ignored by the
// API, so removing a missing object succeeds.
func (s *SupabaseStore) Remove(ctx context.Context, bucket string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.RemoveFile(bucket, keys); err != nil {
		err = storageErr(err)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("remove from %s: %w", bucket, err)
	}
	return nil
}

// storageErr maps the API's not-found answers to ErrNotFound. storage-go
// drops the HTTP status, so the message is all there is to go on.
func storageErr(err error) error {
	var se *storage.StorageError
	if !errors.As(err, &se) {
		return err
	}
	if se.Status == 404 || strings.Contains(strings.ToLower(se.Message), "not found") {
		return fmt.Errorf("%w: %s", ErrNotFound, se.Message)
	}
	return fmt.Errorf("storage api: %s", se.Message)
}
