package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2401.12345v2</id>
    <published>2024-01-20T18:00:00Z</published>
    <title>Vision   Transformers
      at Scale</title>
    <summary>  We study image detection.  </summary>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <link href="http://arxiv.org/abs/2401.12345v2" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2401.12345v2" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.99999v1</id>
    <published>not-a-date</published>
    <title>Broken</title>
    <summary>x</summary>
  </entry>
</feed>`

func newTestClient(srvURL string, retries int) (*Client, *[]time.Duration) {
	log := zerolog.Nop()
	hc := NewHTTPClient(HTTPClientConfig{MaxRetries: retries, BackoffFactor: 2}, log)
	var slept []time.Duration
	hc.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return NewWithHTTPClient(Config{APIURL: srvURL}, hc, log), &slept
}

func TestFetchRecent(t *testing.T) {
	ctx := context.Background()

	t.Run("builds query and parses feed", func(t *testing.T) {
		var gotQuery, gotUA string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			gotUA = r.Header.Get("User-Agent")
			_, _ = w.Write([]byte(sampleFeed))
		}))
		defer srv.Close()

		c, _ := newTestClient(srv.URL, 0)
		papers, err := c.FetchRecent(ctx, []string{"cs.CV", "cs.LG", "cs.CV"}, 0)
		require.NoError(t, err)

		assert.Contains(t, gotQuery, "search_query=cat%3Acs.CV+OR+cat%3Acs.LG")
		assert.Contains(t, gotQuery, "max_results=150")
		assert.Contains(t, gotQuery, "sortBy=submittedDate")
		assert.Contains(t, gotQuery, "sortOrder=descending")
		assert.Equal(t, DefaultUserAgent, gotUA)

		require.Len(t, papers, 1, "entry with bad date is dropped")
		p := papers[0]
		assert.Equal(t, "2401.12345v2", p.ArxivID)
		assert.Equal(t, "Vision Transformers at Scale", p.Title)
		assert.Equal(t, "We study image detection.", p.Abstract)
		assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, p.Authors)
		assert.Equal(t, "http://arxiv.org/pdf/2401.12345v2", p.PDFURL)
		assert.Equal(t, time.Date(2024, 1, 20, 18, 0, 0, 0, time.UTC), p.PublishedAt)
	})

	t.Run("retries 503 then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(sampleFeed))
		}))
		defer srv.Close()

		c, slept := newTestClient(srv.URL, 6)
		papers, err := c.FetchRecent(ctx, []string{"cs.AI"}, 10)
		require.NoError(t, err)
		assert.Len(t, papers, 1)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, []time.Duration{0, 4 * time.Second}, *slept)
	})

	t.Run("honours Retry-After on 429", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(sampleFeed))
		}))
		defer srv.Close()

		c, slept := newTestClient(srv.URL, 6)
		_, err := c.FetchRecent(ctx, []string{"cs.AI"}, 10)
		require.NoError(t, err)
		assert.Equal(t, []time.Duration{7 * time.Second}, *slept)
	})

	t.Run("does not retry 404", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		c, _ := newTestClient(srv.URL, 6)
		_, err := c.FetchRecent(ctx, []string{"cs.AI"}, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c, _ := newTestClient(srv.URL, 2)
		_, err := c.FetchRecent(ctx, []string{"cs.AI"}, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 502")
		assert.Equal(t, int32(3), calls.Load())
	})
}

func TestBackoff(t *testing.T) {
	c := NewHTTPClient(HTTPClientConfig{BackoffFactor: 2}, zerolog.Nop())
	assert.Equal(t, time.Duration(0), c.backoff(1))
	assert.Equal(t, 4*time.Second, c.backoff(2))
	assert.Equal(t, 8*time.Second, c.backoff(3))
	assert.Equal(t, 64*time.Second, c.backoff(6))
	assert.Equal(t, 120*time.Second, c.backoff(10))
}

func TestBuildQuery(t *testing.T) {
	assert.Equal(t, "cat:cs.CV OR cat:cs.LG", BuildQuery([]string{"cs.CV", " cs.LG", "cs.CV", ""}))
	assert.Equal(t, "", BuildQuery(nil))
}

func TestParseEntry(t *testing.T) {
	t.Run("falls back to id and derived pdf url", func(t *testing.T) {
		p, err := ParseEntry(Entry{
			ID:        "http://arxiv.org/abs/hep-th/9901001v1",
			Published: "1999-01-01T00:00:00+02:00",
		})
		require.NoError(t, err)
		assert.Equal(t, "hep-th/9901001v1", p.ArxivID)
		assert.Equal(t, "http://arxiv.org/abs/hep-th/9901001v1", p.AbsURL)
		assert.Equal(t, "http://arxiv.org/pdf/hep-th/9901001v1.pdf", p.PDFURL)
		assert.Equal(t, time.UTC, p.PublishedAt.Location())
		assert.Equal(t, 22, p.PublishedAt.Hour())
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := ParseEntry(Entry{ID: "x", Published: "yesterday"})
		assert.Error(t, err)
	})
}
