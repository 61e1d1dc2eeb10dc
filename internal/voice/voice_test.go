package voice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DreamCats/hospitalvoice/internal/config"
	"github.com/DreamCats/hospitalvoice/internal/extract"
	"github.com/DreamCats/hospitalvoice/internal/retrieval"
)

func TestOpenAITranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile() error = %v", err)
		}
		defer file.Close()
		if !strings.HasSuffix(header.Filename, ".webm") {
			t.Errorf("filename = %q, want .webm suffix", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "RIFFdata" {
			t.Errorf("audio = %q", data)
		}
		w.Write([]byte(`{"text":"Is Apollo in my network?"}`))
	}))
	defer srv.Close()

	stt, err := NewOpenAITranscriber(&config.VoiceConfig{APIKey: "sk-test", Endpoint: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewOpenAITranscriber() error = %v", err)
	}
	text, err := stt.Transcribe(context.Background(), []byte("RIFFdata"), "audio/webm;codecs=opus")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "Is Apollo in my network?" {
		t.Errorf("Transcribe() = %q", text)
	}
}

func TestOpenAISynthesizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Voice != "nova" || req.Model != "tts-1" || req.Input != "hello" {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte("ID3mp3"))
	}))
	defer srv.Close()

	tts, err := NewOpenAISynthesizer(&config.VoiceConfig{APIKey: "k", Endpoint: srv.URL, TTSVoice: "nova"})
	if err != nil {
		t.Fatalf("NewOpenAISynthesizer() error = %v", err)
	}
	audio, contentType, err := tts.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "ID3mp3" {
		t.Errorf("audio = %q", audio)
	}
	if contentType == "" {
		t.Error("missing content type")
	}
}

func TestProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	stt, _ := NewOpenAITranscriber(&config.VoiceConfig{APIKey: "k", Endpoint: srv.URL})
	_, err := stt.Transcribe(context.Background(), []byte("x"), "audio/wav")

	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Status != http.StatusTooManyRequests {
		t.Errorf("error = %v, want ProviderError with 429", err)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAITranscriber(&config.VoiceConfig{}); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := NewOpenAISynthesizer(&config.VoiceConfig{}); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := NewPipelineFromConfig(&config.VoiceConfig{STTProvider: "gemini", TTSProvider: "openai", APIKey: "k"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestStructuredTranscriberFeedsStructuredExtractor(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "raw json", content: `[{"city": "Mumbai", "hospital": "Apollo Hospital", "address": null}]`},
		{name: "fenced json", content: "```json\n[{\"city\": \"Mumbai\", \"hospital\": \"Apollo Hospital\", \"address\": null}]\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/audio/transcriptions":
					w.Write([]byte(`{"text":"Is Apollo Hospital in Mumbai in my network?"}`))
				case "/chat/completions":
					var req chatRequest
					if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
						t.Fatalf("decode: %v", err)
					}
					if req.Model != "gpt-4o-mini" || len(req.Messages) != 2 {
						t.Fatalf("request = %+v", req)
					}
					if req.Messages[0].Role != "system" || !strings.Contains(req.Messages[0].Content, "information extraction engine") {
						t.Errorf("system message = %+v", req.Messages[0])
					}
					if req.Messages[1].Content != "Is Apollo Hospital in Mumbai in my network?" {
						t.Errorf("user message = %q", req.Messages[1].Content)
					}
					json.NewEncoder(w).Encode(map[string]any{
						"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": tt.content}}},
					})
				default:
					t.Errorf("unexpected path %s", r.URL.Path)
				}
			}))
			defer srv.Close()

			p, err := NewPipelineFromConfig(&config.VoiceConfig{
				STTProvider:  config.STTOpenAIStructured,
				TTSProvider:  "openai",
				APIKey:       "k",
				Endpoint:     srv.URL,
				ExtractModel: "gpt-4o-mini",
			})
			if err != nil {
				t.Fatalf("NewPipelineFromConfig() error = %v", err)
			}
			payload, err := p.stt.Transcribe(context.Background(), []byte("wav"), "audio/wav")
			if err != nil {
				t.Fatalf("Transcribe() error = %v", err)
			}
			if !strings.HasPrefix(payload, "[") {
				t.Fatalf("payload = %q, want JSON array", payload)
			}

			ent := extract.Structured{}.Extract(payload)
			if ent.City == nil || *ent.City != "mumbai" {
				t.Errorf("City = %s", ent)
			}
			if ent.HospitalName == nil || *ent.HospitalName != "apollo hospital" {
				t.Errorf("HospitalName = %s", ent)
			}
		})
	}
}

func TestStructuredTranscriberProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	stt, err := NewStructuredTranscriber(fakeSTT{text: "kem hospital"}, &config.VoiceConfig{APIKey: "k", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("NewStructuredTranscriber() error = %v", err)
	}
	_, err = stt.Transcribe(context.Background(), []byte("wav"), "audio/wav")
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Op != "extract" || perr.Status != http.StatusBadRequest {
		t.Errorf("error = %v, want extract ProviderError with 400", err)
	}

	if _, err := NewStructuredTranscriber(fakeSTT{}, &config.VoiceConfig{}); err == nil {
		t.Error("expected error without api key")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		`[{"city":null}]`:   `[{"city":null}]`,
		"```json\n[1]\n```": "[1]",
		"```\n[2]```":       "[2]",
		"  [3]  ":           "[3]",
	}
	for in, want := range tests {
		if got := stripCodeFence(in); got != want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

type fakeSTT struct{ text string }

func (f fakeSTT) Transcribe(context.Context, []byte, string) (string, error) { return f.text, nil }

type fakeTTS struct{ got string }

func (f *fakeTTS) Synthesize(_ context.Context, text string) ([]byte, string, error) {
	f.got = text
	return []byte("audio:" + text), "audio/mpeg", nil
}

type fakeEngine struct{ query string }

func (f *fakeEngine) Answer(_ context.Context, query string) (*retrieval.Answer, error) {
	f.query = query
	return &retrieval.Answer{Query: query, Text: "I found Kem Hospital in Mumbai, located at parel."}, nil
}

func TestPipelineProcess(t *testing.T) {
	tts := &fakeTTS{}
	engine := &fakeEngine{}
	p := NewPipeline(fakeSTT{text: "  kem hospital mumbai \n"}, tts)

	res, err := p.Process(context.Background(), engine, []byte("wav"), "audio/wav")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if engine.query != "kem hospital mumbai" {
		t.Errorf("engine query = %q", engine.query)
	}
	if res.Transcript != "kem hospital mumbai" {
		t.Errorf("Transcript = %q", res.Transcript)
	}
	if tts.got != res.Answer.Text {
		t.Errorf("synthesized %q, want answer text", tts.got)
	}
	if res.AudioType != "audio/mpeg" || !strings.HasPrefix(string(res.Audio), "audio:") {
		t.Errorf("unexpected audio %q (%s)", res.Audio, res.AudioType)
	}

	if _, err := p.Process(context.Background(), engine, nil, "audio/wav"); err == nil {
		t.Error("expected error for empty audio")
	}
}

func TestAudioExtension(t *testing.T) {
	tests := map[string]string{
		"audio/mpeg":             ".mp3",
		"audio/webm;codecs=opus": ".webm",
		"AUDIO/OGG":              ".ogg",
		"":                       ".wav",
		"application/unknown":    ".wav",
	}
	for in, want := range tests {
		if got := audioExtension(in); got != want {
			t.Errorf("audioExtension(%q) = %q, want %q", in, got, want)
		}
	}
}
