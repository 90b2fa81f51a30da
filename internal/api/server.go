// Package api serves the paper chatbot: upload a PDF to index it, then ask
// questions about it.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mowakeb/internal/config"
	"mowakeb/internal/qa"
	"mowakeb/internal/util"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxUploadBytes = 128 << 20

// Pipeline is the part of qa.Pipeline the server needs.
type Pipeline interface {
	BuildIndex(ctx context.Context, pdfPath string) (*qa.Session, error)
	Ask(ctx context.Context, s *qa.Session, question string) (string, error)
}

type Server struct {
	uploadDir string
	maxUpload int64
	pipeline  Pipeline
	sessions  *sessionStore
	validate  *validator.Validate
	gatherer  prometheus.Gatherer
	log       zerolog.Logger
}

type askRequest struct {
	Question  string `json:"question" validate:"required"`
	SessionID string `json:"session_id" validate:"omitempty,uuid"`
}

func NewServer(cfg config.Config, pipeline Pipeline, gatherer prometheus.Gatherer, log zerolog.Logger) (*Server, error) {
	sessions, err := newSessionStore(cfg.MaxSessions)
	if err != nil {
		return nil, err
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		uploadDir: cfg.UploadDir,
		maxUpload: maxUploadBytes,
		pipeline:  pipeline,
		sessions:  sessions,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		gatherer:  gatherer,
		log:       log,
	}, nil
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(withCORS)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/upload", s.handleUpload)
	r.Post("/ask", s.handleAsk)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": s.sessions.Len()})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeErr(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}

	fh, ok := firstFile(r.MultipartForm.File, "file")
	if !ok {
		writeErr(w, http.StatusBadRequest, errors.New("no file provided"))
		return
	}
	if err := util.EnsureDir(s.uploadDir); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	sum, path, err := saveUploadedFile(s.uploadDir, fh)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	log := s.log.With().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("file_path", path).
		Str("sha256", sum).
		Logger()
	log.Info().Int64("bytes", fh.Size).Msg("upload saved")

	session, err := s.pipeline.BuildIndex(r.Context(), path)
	if err != nil {
		log.Error().Err(err).Msg("index build failed")
		if errors.Is(err, util.ErrNoExtractableText) {
			writeErr(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	id := s.sessions.Add(session)
	log.Info().Str("session_id", id).Int("docs_in_index", session.Len()).Msg("upload indexed")

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "uploaded_and_indexed",
		"file_path":     path,
		"docs_in_index": session.Len(),
		"session_id":    id,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	req.SessionID = strings.TrimSpace(req.SessionID)
	if err := s.validate.Struct(req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	var session *qa.Session
	if req.SessionID != "" {
		found, ok := s.sessions.Get(req.SessionID)
		if !ok {
			writeErr(w, http.StatusNotFound, fmt.Errorf("session not found: %s", req.SessionID))
			return
		}
		session = found
	} else if latest, ok := s.sessions.Latest(); ok {
		session = latest
	}

	answer, err := s.pipeline.Ask(r.Context(), session, req.Question)
	if err != nil {
		s.log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("ask failed")
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answer": answer})
}

// saveUploadedFile writes fh to dstDir under its base name, replacing any
// earlier upload with the same name, and returns the content hash.
func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (sum, path string, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*.pdf")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	sum, err = util.SHA256HexFromReader(io.TeeReader(src, tmp))
	if err != nil {
		return "", "", fmt.Errorf("write upload: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", "", fmt.Errorf("close temp file: %w", err)
	}

	name := filepath.Base(fh.Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "upload.pdf"
	}
	finalPath := filepath.Join(dstDir, name)
	if err = os.Rename(tmp.Name(), finalPath); err != nil {
		return "", "", fmt.Errorf("atomic move upload: %w", err)
	}
	return sum, finalPath, nil
}

// firstFile prefers the named form field and otherwise accepts any single
// file part.
func firstFile(m map[string][]*multipart.FileHeader, field string) (*multipart.FileHeader, bool) {
	if files := m[field]; len(files) > 0 {
		return files[0], true
	}
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
