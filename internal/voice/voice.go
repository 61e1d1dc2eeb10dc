// Package voice connects speech providers to the retrieval engine: audio in,
// transcript through the engine, spoken answer out.
package voice

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/DreamCats/hospitalvoice/internal/config"
	"github.com/DreamCats/hospitalvoice/internal/retrieval"
)

// Transcriber converts recorded audio to the query text handed to the
// engine. Depending on the provider the text is a plain transcript or a
// structured entity payload.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Synthesizer renders reply text as audio. It returns the audio bytes and
// their content type.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}

// Answerer produces the reply for a query
type Answerer interface {
	Answer(ctx context.Context, query string) (*retrieval.Answer, error)
}

// Result is the outcome of one voice turn
type Result struct {
	Transcript string
	Answer     *retrieval.Answer
	Audio      []byte
	AudioType  string
}

// Pipeline runs transcribe, answer and synthesize in sequence
type Pipeline struct {
	stt Transcriber
	tts Synthesizer
}

// NewPipeline creates a pipeline from explicit providers
func NewPipeline(stt Transcriber, tts Synthesizer) *Pipeline {
	return &Pipeline{stt: stt, tts: tts}
}

// NewPipelineFromConfig builds the providers named in cfg
func NewPipelineFromConfig(cfg *config.VoiceConfig) (*Pipeline, error) {
	var stt Transcriber
	switch cfg.STTProvider {
	case config.STTOpenAI:
		c, err := NewOpenAITranscriber(cfg)
		if err != nil {
			return nil, err
		}
		stt = c
	case config.STTOpenAIStructured:
		c, err := NewOpenAITranscriber(cfg)
		if err != nil {
			return nil, err
		}
		stt, err = NewStructuredTranscriber(c, cfg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported stt provider: %s", cfg.STTProvider)
	}

	var tts Synthesizer
	switch cfg.TTSProvider {
	case "openai":
		c, err := NewOpenAISynthesizer(cfg)
		if err != nil {
			return nil, err
		}
		tts = c
	default:
		return nil, fmt.Errorf("unsupported tts provider: %s", cfg.TTSProvider)
	}

	return NewPipeline(stt, tts), nil
}

// Process handles one recorded query
func (p *Pipeline) Process(ctx context.Context, engine Answerer, audio []byte, mimeType string) (*Result, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio")
	}

	transcript, err := p.stt.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	transcript = strings.TrimSpace(transcript)
	log.Printf("User Query: %s", transcript)

	answer, err := engine.Answer(ctx, transcript)
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}
	log.Printf("Response: %s", answer.Text)

	speech, contentType, err := p.tts.Synthesize(ctx, answer.Text)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	return &Result{
		Transcript: transcript,
		Answer:     answer,
		Audio:      speech,
		AudioType:  contentType,
	}, nil
}
