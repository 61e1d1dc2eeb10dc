// Package server exposes the voice agent over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/DreamCats/hospitalvoice/internal/config"
	"github.com/DreamCats/hospitalvoice/internal/retrieval"
	"github.com/DreamCats/hospitalvoice/internal/textindex"
	"github.com/DreamCats/hospitalvoice/internal/voice"
)

// Server routes HTTP requests to the retrieval engine and voice pipeline
type Server struct {
	cfg      config.ServerConfig
	provider *retrieval.Provider
	pipeline *voice.Pipeline
	textDir  string

	textOnce  sync.Once
	textIndex *textindex.Index
	textErr   error

	handler http.Handler
}

// New creates a server. pipeline may be nil, in which case /voice answers
// 503.
func New(cfg *config.Config, provider *retrieval.Provider, pipeline *voice.Pipeline) *Server {
	s := &Server{
		cfg:      cfg.Server,
		provider: provider,
		pipeline: pipeline,
		textDir:  cfg.Data.TextIndexDir,
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)
	limited := RateLimit(limiter)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("POST /voice", limited(http.HandlerFunc(s.handleVoice)))
	mux.Handle("POST /query", limited(http.HandlerFunc(s.handleQuery)))
	mux.HandleFunc("GET /hospitals/search", s.handleSearch)

	s.handler = Chain(mux,
		Recover(),
		RequestID(),
		Logger(),
		OTel("hospitalvoice"),
		CORS(cfg.Server.CORSOrigin),
		Timeout(cfg.Server.RequestTimeout),
	)
	return s
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close releases the text index if it was opened
func (s *Server) Close() error {
	if s.textIndex != nil {
		return s.textIndex.Close()
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Hospital Voice Agent API",
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	engine, err := s.provider.Engine()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"hospitals_indexed": engine.Len(),
	})
}

// QueryRequest is the body of POST /query
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is the reply to POST /query
type QueryResponse struct {
	Query          string                   `json:"query"`
	ResponseText   string                   `json:"response_text"`
	HospitalsFound int                      `json:"hospitals_found"`
	Hospitals      []retrieval.ScoredResult `json:"hospitals"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	engine, err := s.provider.Engine()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	answer, err := engine.Answer(r.Context(), req.Query)
	if err != nil {
		log.Printf("Error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	hospitals := answer.Results
	if hospitals == nil {
		hospitals = []retrieval.ScoredResult{}
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		Query:          answer.Query,
		ResponseText:   answer.Text,
		HospitalsFound: len(answer.Results),
		Hospitals:      hospitals,
	})
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "voice providers are not configured")
		return
	}

	engine, err := s.provider.Engine()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload())
	file, header, err := r.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"audio\" is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read audio: %v", err))
		return
	}

	result, err := s.pipeline.Process(r.Context(), engine, audio, header.Header.Get("Content-Type"))
	if err != nil {
		log.Printf("Error: %v", err)
		var perr *voice.ProviderError
		if errors.As(err, &perr) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", result.AudioType)
	w.Header().Set("X-Transcribed-Text", SanitizeHeader(result.Transcript))
	w.Header().Set("X-Response-Text", SanitizeHeader(result.Answer.Text))
	w.Header().Set("X-Hospitals-Found", strconv.Itoa(len(result.Answer.Results)))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Audio)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 100)
	}

	index, err := s.openTextIndex()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	hits, err := index.Search(q, r.URL.Query().Get("city"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query": q,
		"count": len(hits),
		"hits":  hits,
	})
}

func (s *Server) openTextIndex() (*textindex.Index, error) {
	s.textOnce.Do(func() {
		if s.textDir == "" {
			s.textErr = fmt.Errorf("text index is not configured")
			return
		}
		s.textIndex, s.textErr = textindex.Open(s.textDir)
	})
	return s.textIndex, s.textErr
}

func (s *Server) maxUpload() int64 {
	if s.cfg.MaxUploadBytes > 0 {
		return s.cfg.MaxUploadBytes
	}
	return 25 << 20
}

// SanitizeHeader makes text safe for a response header value
func SanitizeHeader(text string) string {
	return strings.NewReplacer("\n", " ", "\r", " ", "*", "").Replace(text)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
