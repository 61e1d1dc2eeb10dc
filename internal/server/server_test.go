package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DreamCats/hospitalvoice/internal/config"
	"github.com/DreamCats/hospitalvoice/internal/embedding"
	"github.com/DreamCats/hospitalvoice/internal/indexer"
	"github.com/DreamCats/hospitalvoice/internal/retrieval"
	"github.com/DreamCats/hospitalvoice/internal/store"
	"github.com/DreamCats/hospitalvoice/internal/textindex"
	"github.com/DreamCats/hospitalvoice/internal/voice"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Embedding = config.EmbeddingConfig{Provider: "local", Dimensions: 128, BatchSize: 8, MaxWorkers: 1}
	cfg.Data.TextIndexDir = filepath.Join(t.TempDir(), "hospitals.bleve")
	cfg.Search = config.SearchConfig{TopK: 3, Overfetch: 3, ExtractionMode: config.ExtractionFreeText}
	cfg.Server = config.ServerConfig{CORSOrigin: "*", RateLimit: 100, RateBurst: 100, RequestTimeout: 5 * time.Second}
	return cfg
}

func testProvider(t *testing.T, cfg *config.Config) *retrieval.Provider {
	t.Helper()

	records := []store.HospitalRecord{
		{HospitalName: "fortis hospital", Address: "mulund goregaon link road", City: "mumbai"},
		{HospitalName: "apollo hospital", Address: "greams road", City: "chennai"},
		{HospitalName: "miot hospitals", Address: "manapakkam", City: "chennai"},
	}
	texts := make([]string, len(records))
	for i := range records {
		records[i].ID = i
		records[i].ChunkText = indexer.ChunkText(records[i])
		texts[i] = records[i].ChunkText
	}

	if err := textindex.Build(cfg.Data.TextIndexDir, records); err != nil {
		t.Fatalf("textindex.Build() error = %v", err)
	}

	svc, err := embedding.NewService(&cfg.Embedding)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	vectors, err := svc.EmbedBatch(context.Background(), texts, nil)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}

	return retrieval.NewProvider(func() (*retrieval.Engine, error) {
		art := &store.Artifacts{Records: store.NewRecordStore(records), Vectors: vectors}
		return retrieval.NewEngine(art, svc, cfg.Search.ExtractionMode, retrieval.SearchOptions{TopK: 3, Overfetch: 3})
	})
}

type fakeSTT struct {
	text string
	err  error
}

func (f fakeSTT) Transcribe(context.Context, []byte, string) (string, error) { return f.text, f.err }

type fakeTTS struct{}

func (fakeTTS) Synthesize(_ context.Context, text string) ([]byte, string, error) {
	return []byte("mp3:" + text), "audio/mpeg", nil
}

func newTestServer(t *testing.T, stt voice.Transcriber) *Server {
	t.Helper()
	cfg := testConfig(t)
	s := New(cfg, testProvider(t, cfg), voice.NewPipeline(stt, fakeTTS{}))
	t.Cleanup(func() { s.Close() })
	return s
}

func audioRequest(t *testing.T, field string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="q.wav"`)
	h.Set("Content-Type", "audio/wav")
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("RIFF...."))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/voice", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t, fakeSTT{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "running") {
		t.Errorf("GET / = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request id header")
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health struct {
		Status           string `json:"status"`
		HospitalsIndexed int    `json:"hospitals_indexed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if rec.Code != http.StatusOK || health.Status != "healthy" || health.HospitalsIndexed != 3 {
		t.Errorf("GET /health = %d %+v", rec.Code, health)
	}
}

func TestHealthUnavailable(t *testing.T) {
	cfg := testConfig(t)
	provider := retrieval.NewProvider(func() (*retrieval.Engine, error) {
		return nil, errors.New("artifact not found")
	})
	s := New(cfg, provider, nil)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"apollo"}`)),
	} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s = %d, want 503", req.Method, req.URL.Path, rec.Code)
		}
	}
}

func TestQuery(t *testing.T) {
	s := newTestServer(t, fakeSTT{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"hospitals around chennai"}`))
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /query = %d %s", rec.Code, rec.Body.String())
	}
	var resp QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.HospitalsFound != len(resp.Hospitals) || resp.HospitalsFound == 0 {
		t.Errorf("hospitals_found = %d, hospitals = %d", resp.HospitalsFound, len(resp.Hospitals))
	}
	if resp.ResponseText == "" || resp.Query != "hospitals around chennai" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestQueryBadRequest(t *testing.T) {
	s := newTestServer(t, fakeSTT{})

	for _, body := range []string{`not json`, `{"query":"   "}`} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status %d, want 400", body, rec.Code)
		}
	}
}

func TestVoice(t *testing.T) {
	s := newTestServer(t, fakeSTT{text: "Is Fortis Hospital in my network?"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, audioRequest(t, "audio"))

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /voice = %d %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("X-Transcribed-Text"); got != "Is Fortis Hospital in my network?" {
		t.Errorf("X-Transcribed-Text = %q", got)
	}
	if got := rec.Header().Get("X-Response-Text"); !strings.HasPrefix(got, "Yes, ") {
		t.Errorf("X-Response-Text = %q", got)
	}
	if rec.Header().Get("X-Hospitals-Found") == "" {
		t.Error("missing X-Hospitals-Found")
	}
	if !strings.HasPrefix(rec.Body.String(), "mp3:") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestVoiceErrors(t *testing.T) {
	t.Run("missing field", func(t *testing.T) {
		s := newTestServer(t, fakeSTT{text: "x"})
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, audioRequest(t, "file"))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		s := newTestServer(t, fakeSTT{err: &voice.ProviderError{Op: "transcribe", Status: 500, Body: "down"}})
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, audioRequest(t, "audio"))
		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", rec.Code)
		}
	})

	t.Run("no pipeline", func(t *testing.T) {
		cfg := testConfig(t)
		s := New(cfg, testProvider(t, cfg), nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, audioRequest(t, "audio"))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

func TestSearch(t *testing.T) {
	s := newTestServer(t, fakeSTT{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hospitals/search?q=apollo&city=chennai", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /hospitals/search = %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Count int             `json:"count"`
		Hits  []textindex.Hit `json:"hits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Hits[0].HospitalName != "apollo hospital" {
		t.Errorf("resp = %+v", resp)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hospitals/search", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing q: status %d, want 400", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.RateLimit = 0.001
	cfg.Server.RateBurst = 1
	s := New(cfg, testProvider(t, cfg), nil)

	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"apollo"}`)))
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, fakeSTT{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/voice", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("OPTIONS /voice = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}

func TestRecoverCatchesPanic(t *testing.T) {
	h := Recover()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestChainOrder(t *testing.T) {
	var order []int
	mw := func(n int) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, n)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, 0)
	}), mw(1), mw(2), mw(3))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 4 || order[0] != 1 || order[1] != 2 || order[2] != 3 || order[3] != 0 {
		t.Fatalf("expected [1,2,3,0], got %v", order)
	}
}

func TestRequestIDReused(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "abc-123" || rec.Header().Get(RequestIDHeader) != "abc-123" {
		t.Errorf("request id = %q / %q", seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestSanitizeHeader(t *testing.T) {
	got := SanitizeHeader("Here are 2 hospitals:\n\n1. **Apollo**\r\n2. Fortis")
	want := "Here are 2 hospitals:  1. Apollo  2. Fortis"
	if got != want {
		t.Errorf("SanitizeHeader() = %q, want %q", got, want)
	}
}
