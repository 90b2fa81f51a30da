package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mowakeb/internal/config"
	"mowakeb/internal/observability"
	"mowakeb/internal/providers"
	"mowakeb/internal/qa"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticExtractor string

func (s staticExtractor) Extract(context.Context, string) (string, error) { return string(s), nil }

func newTestServer(t *testing.T, text string) (*Server, string, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	mock := providers.NewMockProvider(16)
	pipeline := qa.NewPipeline(qa.Deps{
		Extractor: staticExtractor(text),
		LLM:       mock,
		Embedder:  mock,
	}, qa.Config{EmbedDim: 16}, zerolog.Nop(), observability.NewMetrics(reg))

	dir := filepath.Join(t.TempDir(), "uploads")
	srv, err := NewServer(config.Config{UploadDir: dir, MaxSessions: 4}, pipeline, reg, zerolog.Nop())
	require.NoError(t, err)
	return srv, dir, reg
}

func uploadRequest(t *testing.T, field, name string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func askRequestBody(question, sessionID string) *http.Request {
	b, _ := json.Marshal(map[string]string{"question": question, "session_id": sessionID})
	return httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader(b))
}

func serve(h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestUploadThenAsk(t *testing.T) {
	srv, dir, _ := newTestServer(t, "Graph neural networks aggregate neighbour features.")
	h := srv.Routes()

	rec, body := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, body["sessions"])

	rec, body = serve(h, uploadRequest(t, "file", "../../paper.pdf", []byte("%PDF-1.4 fake")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "uploaded_and_indexed", body["status"])
	assert.Equal(t, filepath.Join(dir, "paper.pdf"), body["file_path"])
	assert.Equal(t, 1.0, body["docs_in_index"])
	sessionID, _ := body["session_id"].(string)
	_, err := uuid.Parse(sessionID)
	require.NoError(t, err)

	saved, err := os.ReadFile(filepath.Join(dir, "paper.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(saved))

	t.Run("explicit session", func(t *testing.T) {
		rec, body := serve(h, askRequestBody("What do they aggregate?", sessionID))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, body["answer"], "grounded in the uploaded paper")
	})

	t.Run("latest session", func(t *testing.T) {
		rec, body := serve(h, askRequestBody("What do they aggregate?", ""))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, body["answer"], "grounded in the uploaded paper")
	})

	t.Run("unknown session", func(t *testing.T) {
		rec, body := serve(h, askRequestBody("q", uuid.NewString()))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "MW-API-4004", errorCode(body))
	})

	rec, body = serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["sessions"])
}

func TestAskWithoutUpload(t *testing.T) {
	srv, _, _ := newTestServer(t, "unused")
	rec, body := serve(srv.Routes(), askRequestBody("What is BLEU?", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mock answer: What is BLEU?", body["answer"])
}

func TestAskValidation(t *testing.T) {
	srv, _, _ := newTestServer(t, "text")
	h := srv.Routes()

	cases := []struct {
		name    string
		req     *http.Request
		message string
	}{
		{"blank question", askRequestBody("   ", ""), "A question is required."},
		{"bad session id", askRequestBody("q", "not-a-uuid"), "session_id must be a valid session id."},
		{"malformed json", httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("{")), "Malformed JSON request body."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := serve(h, tc.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "MW-API-4001", errorCode(body))
			e := body["error"].(map[string]any)
			assert.Equal(t, tc.message, e["message"])
		})
	}
}

func TestUploadErrors(t *testing.T) {
	t.Run("any file field is accepted", func(t *testing.T) {
		srv, _, _ := newTestServer(t, "text")
		rec, body := serve(srv.Routes(), uploadRequest(t, "pdf", "a.pdf", []byte("x")))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "uploaded_and_indexed", body["status"])
	})

	t.Run("no file", func(t *testing.T) {
		srv, _, _ := newTestServer(t, "text")
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("note", "hi"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		rec, body := serve(srv.Routes(), req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No PDF file was provided.", body["error"].(map[string]any)["message"])
	})

	t.Run("nothing extractable", func(t *testing.T) {
		srv, _, _ := newTestServer(t, "  ")
		rec, body := serve(srv.Routes(), uploadRequest(t, "file", "blank.pdf", []byte("x")))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "MW-QA-4220", errorCode(body))
	})
}

func TestUploadTooLarge(t *testing.T) {
	srv, dir, _ := newTestServer(t, "text")
	srv.maxUpload = 1 << 10

	rec, body := serve(srv.Routes(), uploadRequest(t, "file", "big.pdf", bytes.Repeat([]byte("x"), 8<<10)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "MW-API-4130", errorCode(body))

	_, err := os.Stat(filepath.Join(dir, "big.pdf"))
	assert.True(t, os.IsNotExist(err), "nothing is saved")
}

type failingPipeline struct{}

func (failingPipeline) BuildIndex(context.Context, string) (*qa.Session, error) {
	return nil, errors.New("embed documents: provider down")
}

func (failingPipeline) Ask(context.Context, *qa.Session, string) (string, error) {
	return "", errors.New("generate answer: all providers failed")
}

func TestProviderFailures(t *testing.T) {
	srv, err := NewServer(config.Config{UploadDir: t.TempDir()}, failingPipeline{}, prometheus.NewRegistry(), zerolog.Nop())
	require.NoError(t, err)
	h := srv.Routes()

	rec, body := serve(h, askRequestBody("q", ""))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "MW-API-5020", errorCode(body))

	rec, body = serve(h, uploadRequest(t, "file", "a.pdf", []byte("x")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "MW-QA-5002", errorCode(body))
}

func TestCORSAndRouting(t *testing.T) {
	srv, _, _ := newTestServer(t, "text")
	h := srv.Routes()

	rec, _ := serve(h, httptest.NewRequest(http.MethodOptions, "/upload", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec, body := serve(h, httptest.NewRequest(http.MethodGet, "/ask", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "MW-API-4005", errorCode(body))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec, _ = serve(h, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, "text")
	h := srv.Routes()
	serve(h, askRequestBody("q", ""))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mowakeb_qa_ask_total{outcome="answered"} 1`)
}

func TestSessionStoreEviction(t *testing.T) {
	st, err := newSessionStore(2)
	require.NoError(t, err)

	_, ok := st.Latest()
	assert.False(t, ok)

	first := st.Add(&qa.Session{})
	st.Add(&qa.Session{})
	third := st.Add(&qa.Session{})

	_, ok = st.Get(first)
	assert.False(t, ok, "oldest session is evicted")
	assert.Equal(t, 2, st.Len())

	latest, ok := st.Latest()
	require.True(t, ok)
	got, _ := st.Get(third)
	assert.Same(t, got, latest)
}
