package pdfsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrDownloadFailed = errors.New("download failed")

const DefaultDownloadTimeout = 60 * time.Second

type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

type HTTPDownloader struct {
	client    *http.Client
	userAgent string
}

func NewHTTPDownloader(timeout time.Duration, userAgent string) *HTTPDownloader {
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	return &HTTPDownloader{client: &http.Client{Timeout: timeout}, userAgent: userAgent}
}

func (d *HTTPDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDownloadFailed, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrDownloadFailed, url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrDownloadFailed, url, err)
	}
	return data, nil
}
