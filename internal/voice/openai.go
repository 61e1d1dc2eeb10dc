package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DreamCats/hospitalvoice/internal/config"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1"

// ProviderError is a non-2xx response from a speech provider
type ProviderError struct {
	Op     string
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// OpenAITranscriber calls the /audio/transcriptions endpoint
type OpenAITranscriber struct {
	apiKey   string
	endpoint string
	model    string
	prompt   string
	client   *http.Client
}

// NewOpenAITranscriber creates a transcriber from voice settings
func NewOpenAITranscriber(cfg *config.VoiceConfig) (*OpenAITranscriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("voice api_key is required for openai stt")
	}
	model := cfg.STTModel
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAITranscriber{
		apiKey:   cfg.APIKey,
		endpoint: endpointOrDefault(cfg.Endpoint),
		model:    model,
		prompt:   cfg.STTPrompt,
		client:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads audio and returns the recognised text
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", "query-"+uuid.NewString()+audioExtension(mimeType))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	fields := map[string]string{
		"model":           t.model,
		"language":        "en",
		"response_format": "json",
	}
	if t.prompt != "" {
		fields["prompt"] = t.prompt
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &ProviderError{Op: "transcribe", Status: resp.StatusCode, Body: string(msg)}
	}

	var result transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode transcription: %w", err)
	}
	return result.Text, nil
}

// OpenAISynthesizer calls the /audio/speech endpoint
type OpenAISynthesizer struct {
	apiKey   string
	endpoint string
	model    string
	voice    string
	client   *http.Client
}

// NewOpenAISynthesizer creates a synthesizer from voice settings
func NewOpenAISynthesizer(cfg *config.VoiceConfig) (*OpenAISynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("voice api_key is required for openai tts")
	}
	model := cfg.TTSModel
	if model == "" {
		model = "tts-1"
	}
	v := cfg.TTSVoice
	if v == "" {
		v = "alloy"
	}
	return &OpenAISynthesizer{
		apiKey:   cfg.APIKey,
		endpoint: endpointOrDefault(cfg.Endpoint),
		model:    model,
		voice:    v,
		client:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize returns MP3 audio for text
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	payload, err := json.Marshal(speechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", &ProviderError{Op: "synthesize", Status: resp.StatusCode, Body: string(msg)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = "audio/mpeg"
	}
	return audio, contentType, nil
}

func endpointOrDefault(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	if endpoint == "" {
		return defaultOpenAIEndpoint
	}
	return endpoint
}

// audioExtension maps an upload content type to the file extension the
// transcription API uses to detect the format
func audioExtension(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	switch strings.TrimSpace(strings.ToLower(mimeType)) {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/ogg":
		return ".ogg"
	case "audio/webm", "video/webm":
		return ".webm"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	default:
		return ".wav"
	}
}
