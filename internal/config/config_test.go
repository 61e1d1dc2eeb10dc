package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	t.Setenv("HOSPITALVOICE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Parse([]byte(`
embedding:
  provider: local
data:
  path: /tmp/hv/hospitals.db
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Embedding.Model != "local-hash-v1" {
		t.Errorf("Embedding.Model = %q, want local-hash-v1", cfg.Embedding.Model)
	}
	if cfg.Search.TopK != 3 {
		t.Errorf("Search.TopK = %d, want 3", cfg.Search.TopK)
	}
	if cfg.Search.Overfetch != 3 {
		t.Errorf("Search.Overfetch = %d, want 3", cfg.Search.Overfetch)
	}
	if cfg.Search.ExtractionMode != ExtractionFreeText {
		t.Errorf("Search.ExtractionMode = %q, want %q", cfg.Search.ExtractionMode, ExtractionFreeText)
	}
	if cfg.Data.TextIndexDir != "/tmp/hv/hospitals.bleve" {
		t.Errorf("Data.TextIndexDir = %q", cfg.Data.TextIndexDir)
	}
	if cfg.Server.RequestTimeout != 60*time.Second {
		t.Errorf("Server.RequestTimeout = %v", cfg.Server.RequestTimeout)
	}
}

func TestParseReadsEnvironmentKey(t *testing.T) {
	t.Setenv("HOSPITALVOICE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Parse([]byte("data:\n  path: /tmp/x.db\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Embedding.APIKey != "sk-test" || cfg.Voice.APIKey != "sk-test" {
		t.Errorf("api keys not taken from environment: %+v %+v", cfg.Embedding, cfg.Voice)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("HOSPITALVOICE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "openai without key",
			yaml:    "embedding:\n  provider: openai\n",
			wantErr: "requires api_key",
		},
		{
			name:    "unknown provider",
			yaml:    "embedding:\n  provider: cohere\n",
			wantErr: "unsupported embedding provider",
		},
		{
			name:    "unknown extraction mode",
			yaml:    "embedding:\n  provider: local\nsearch:\n  extraction_mode: regex\n",
			wantErr: "unsupported extraction_mode",
		},
		{
			name:    "negative top k",
			yaml:    "embedding:\n  provider: local\nsearch:\n  top_k: -1\n",
			wantErr: "top_k must be positive",
		},
		{
			name: "structured mode",
			yaml: "embedding:\n  provider: ollama\nsearch:\n  extraction_mode: structured\n",
		},
		{
			name:    "structured mode with plain transcriber",
			yaml:    "embedding:\n  provider: local\nsearch:\n  extraction_mode: structured\nvoice:\n  stt_provider: openai\n",
			wantErr: "needs stt_provider",
		},
		{
			name:    "structured transcriber with freetext mode",
			yaml:    "embedding:\n  provider: local\nsearch:\n  extraction_mode: freetext\nvoice:\n  stt_provider: openai-structured\n",
			wantErr: "needs extraction_mode",
		},
		{
			name:    "unknown stt provider",
			yaml:    "embedding:\n  provider: local\nvoice:\n  stt_provider: gemini\n",
			wantErr: "unsupported stt_provider",
		},
		{
			name: "structured pair",
			yaml: "embedding:\n  provider: local\nsearch:\n  extraction_mode: structured\nvoice:\n  stt_provider: openai-structured\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Parse() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSTTProviderFollowsExtractionMode(t *testing.T) {
	t.Setenv("HOSPITALVOICE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	tests := []struct {
		mode string
		want string
	}{
		{mode: ExtractionFreeText, want: STTOpenAI},
		{mode: ExtractionStructured, want: STTOpenAIStructured},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg, err := Parse([]byte("embedding:\n  provider: local\nsearch:\n  extraction_mode: " + tt.mode + "\n"))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.Voice.STTProvider != tt.want {
				t.Errorf("Voice.STTProvider = %q, want %q", cfg.Voice.STTProvider, tt.want)
			}
			if cfg.Voice.ExtractModel == "" {
				t.Error("Voice.ExtractModel default not applied")
			}
		})
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !IsConfigNotFound(err) {
		t.Fatalf("expected ConfigNotFoundError, got %v", err)
	}
}

func TestWriteDefaultTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "hospitalvoice.yaml")

	created, err := WriteDefaultTemplate(path)
	if err != nil || !created {
		t.Fatalf("WriteDefaultTemplate() = %v, %v; want true, nil", created, err)
	}

	created, err = WriteDefaultTemplate(path)
	if err != nil || created {
		t.Fatalf("second WriteDefaultTemplate() = %v, %v; want false, nil", created, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read template: %v", err)
	}
	if !strings.Contains(string(data), "extraction_mode") {
		t.Errorf("template does not mention extraction_mode")
	}
}
