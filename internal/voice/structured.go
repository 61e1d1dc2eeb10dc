package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DreamCats/hospitalvoice/internal/config"
)

// entityPrompt instructs the chat model to turn a spoken question into the
// entity array read by extract.Structured.
const entityPrompt = `You are an information extraction engine.
Given a user's spoken question about hospitals, extract ONLY the entities and output valid JSON.

STRICT RULES:
- Output ONLY RAW JSON.
- DO NOT wrap JSON in ` + "```" + ` or ` + "```json" + ` or any code block.
- DO NOT add commentary.
- DO NOT answer the question.
- DO NOT include markdown.
- The FIRST character of your response MUST be '['.
- If city/hospital/address not mentioned, use null.
- If city is Bangalore, convert it to bengaluru.

Return JSON EXACTLY like this:
[{"city": string or null, "hospital": string or null, "address": string or null}]`

// StructuredTranscriber transcribes audio and then asks a chat model to
// reduce the transcript to a [{"city","hospital","address"}] JSON array.
type StructuredTranscriber struct {
	stt      Transcriber
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

// NewStructuredTranscriber wraps stt with an entity extraction call
func NewStructuredTranscriber(stt Transcriber, cfg *config.VoiceConfig) (*StructuredTranscriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("voice api_key is required for structured stt")
	}
	model := cfg.ExtractModel
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &StructuredTranscriber{
		stt:      stt,
		apiKey:   cfg.APIKey,
		endpoint: endpointOrDefault(cfg.Endpoint),
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Transcribe returns the entity JSON for the spoken question
func (s *StructuredTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	transcript, err := s.stt.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return "", err
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", fmt.Errorf("empty transcript")
	}
	return s.extractEntities(ctx, transcript)
}

func (s *StructuredTranscriber) extractEntities(ctx context.Context, transcript string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: entityPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &ProviderError{Op: "extract", Status: resp.StatusCode, Body: string(msg)}
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode extraction: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("extraction returned no choices")
	}
	return stripCodeFence(result.Choices[0].Message.Content), nil
}

// stripCodeFence removes a markdown fence models sometimes add despite
// being told not to
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
