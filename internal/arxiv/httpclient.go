package arxiv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HTTPClientConfig configures the rate-limited, retrying HTTP client.
type HTTPClientConfig struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration

	// RatePerSecond is the sustained request rate. Zero or less disables
	// rate limiting.
	RatePerSecond float64

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BackoffFactor scales the exponential delay between retries.
	BackoffFactor float64

	// MaxBackoff caps the computed delay.
	MaxBackoff time.Duration

	UserAgent string
}

// HTTPClient retries idempotent GETs on network errors and on 429/500/502/503/504.
// It is safe for concurrent use.
type HTTPClient struct {
	client  *http.Client
	limiter *rate.Limiter
	config  HTTPClientConfig
	log     zerolog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewHTTPClient(cfg HTTPClientConfig, log zerolog.Logger) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 120 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &HTTPClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		config:  cfg,
		log:     log,
		sleep:   sleepCtx,
	}
}

// Do sends req, retrying when allowed. Only GET requests are retried.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	maxRetries := c.config.MaxRetries
	if req.Method != http.MethodGet {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if attempt >= maxRetries {
				return nil, fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
			}
			delay := c.backoff(attempt + 1)
			c.log.Warn().Err(err).Int("retry", attempt+1).Dur("delay", delay).Msg("arxiv request failed, retrying")
			if err := c.sleep(req.Context(), delay); err != nil {
				return nil, err
			}
			continue
		}

		if !retryableStatus(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		delay := c.backoff(attempt + 1)
		if d, ok := retryAfter(resp); ok {
			delay = d
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		c.log.Warn().Int("status", resp.StatusCode).Int("retry", attempt+1).Dur("delay", delay).Msg("arxiv returned retryable status")
		if err := c.sleep(req.Context(), delay); err != nil {
			return nil, err
		}
	}
}

// backoff returns the delay before retry n (1-based). The first retry is
// immediate; later ones grow as factor * 2^(n-1), capped at MaxBackoff.
func (c *HTTPClient) backoff(n int) time.Duration {
	if n <= 1 || c.config.BackoffFactor <= 0 {
		return 0
	}
	secs := c.config.BackoffFactor * math.Pow(2, float64(n-1))
	d := time.Duration(secs * float64(time.Second))
	if d > c.config.MaxBackoff {
		return c.config.MaxBackoff
	}
	return d
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter honours Retry-After on 429 and 503 only.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
