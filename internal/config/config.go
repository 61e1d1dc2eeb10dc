package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Extraction modes for the entity extractor
const (
	ExtractionStructured = "structured"
	ExtractionFreeText   = "freetext"
)

// Speech-to-text providers. "openai" returns a plain transcript;
// "openai-structured" returns the entity JSON array structured mode reads.
const (
	STTOpenAI           = "openai"
	STTOpenAIStructured = "openai-structured"
)

// Config holds the application configuration
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Data      DataConfig      `yaml:"data"`
	Search    SearchConfig    `yaml:"search,omitempty"`
	Voice     VoiceConfig     `yaml:"voice,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
}

// EmbeddingConfig holds embedding service configuration.
// The same settings must be used at build time and at query time.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "openai" | "ollama" | "local"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`

	Dimensions int `yaml:"dimensions"`            // only honoured by the local encoder
	BatchSize  int `yaml:"batch_size"`            // texts per provider request
	MaxWorkers int `yaml:"max_workers,omitempty"` // concurrent batch requests
}

// DataConfig locates the build artifacts and the build input
type DataConfig struct {
	Path         string `yaml:"path"`                     // sqlite file with records, vectors and index metadata
	TextIndexDir string `yaml:"text_index_dir,omitempty"` // bleve directory for directory search
	Input        string `yaml:"input,omitempty"`          // CSV glob consumed by `build`
}

// SearchConfig holds query-time retrieval settings
type SearchConfig struct {
	TopK           int    `yaml:"top_k,omitempty"`
	Overfetch      int    `yaml:"overfetch,omitempty"`
	ExtractionMode string `yaml:"extraction_mode,omitempty"` // "structured" | "freetext"
}

// VoiceConfig configures the speech providers
type VoiceConfig struct {
	STTProvider  string `yaml:"stt_provider,omitempty"` // "openai" | "openai-structured"
	TTSProvider  string `yaml:"tts_provider,omitempty"`
	APIKey       string `yaml:"api_key,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	STTModel     string `yaml:"stt_model,omitempty"`
	STTPrompt    string `yaml:"stt_prompt,omitempty"`
	ExtractModel string `yaml:"extract_model,omitempty"` // chat model turning a transcript into entities
	TTSModel     string `yaml:"tts_model,omitempty"`
	TTSVoice     string `yaml:"tts_voice,omitempty"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr           string        `yaml:"addr,omitempty"`
	CORSOrigin     string        `yaml:"cors_origin,omitempty"`
	RateLimit      float64       `yaml:"rate_limit,omitempty"` // requests per second on /voice and /query
	RateBurst      int           `yaml:"rate_burst,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes,omitempty"`
}

// DefaultConfigPath returns ~/.hospitalvoice/config/hospitalvoice.yaml
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".hospitalvoice", "config", "hospitalvoice.yaml"), nil
}

// Load loads configuration from the default config file
func Load() (*Config, error) {
	configPath, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromFile(configPath)
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			defaultPath, _ := DefaultConfigPath()
			return nil, &ConfigNotFoundError{
				RequestedPath: path,
				DefaultPath:   defaultPath,
			}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ConfigNotFoundError is returned when config file is not found
type ConfigNotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s\n\nDefault location: %s\n\nYou can:\n"+
		"  1. Run 'hospitalvoice init' to create a config template\n"+
		"  2. Specify a custom path with -config flag",
		e.RequestedPath, e.DefaultPath)
}

// IsConfigNotFound checks if error is config not found
func IsConfigNotFound(err error) bool {
	_, ok := err.(*ConfigNotFoundError)
	return ok
}

// expandPath expands ~ and $HOME to the user's home directory
func expandPath(path string) string {
	var rest string
	switch {
	case path == "~" || path == "$HOME":
	case strings.HasPrefix(path, "~/"):
		rest = path[2:]
	case strings.HasPrefix(path, "$HOME/"):
		rest = path[6:]
	default:
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, rest)
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		switch c.Embedding.Provider {
		case "openai":
			c.Embedding.Model = "text-embedding-3-small"
		case "ollama":
			c.Embedding.Model = "all-minilm"
		case "local":
			c.Embedding.Model = "local-hash-v1"
		}
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = envAPIKey()
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 64
	}
	if c.Embedding.MaxWorkers == 0 {
		c.Embedding.MaxWorkers = 4
	}

	if c.Data.Path == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			c.Data.Path = filepath.Join(homeDir, ".hospitalvoice", "data", "hospitals.db")
		}
	}
	c.Data.Path = expandPath(c.Data.Path)
	if c.Data.TextIndexDir == "" && c.Data.Path != "" {
		c.Data.TextIndexDir = strings.TrimSuffix(c.Data.Path, filepath.Ext(c.Data.Path)) + ".bleve"
	}
	c.Data.TextIndexDir = expandPath(c.Data.TextIndexDir)
	if c.Data.Input == "" {
		c.Data.Input = "hospitals.csv"
	}
	c.Data.Input = expandPath(c.Data.Input)

	if c.Search.TopK == 0 {
		c.Search.TopK = 3
	}
	if c.Search.Overfetch == 0 {
		c.Search.Overfetch = 3
	}
	if c.Search.ExtractionMode == "" {
		c.Search.ExtractionMode = ExtractionFreeText
	}

	if c.Voice.STTProvider == "" {
		c.Voice.STTProvider = STTOpenAI
		if c.Search.ExtractionMode == ExtractionStructured {
			c.Voice.STTProvider = STTOpenAIStructured
		}
	}
	if c.Voice.TTSProvider == "" {
		c.Voice.TTSProvider = "openai"
	}
	if c.Voice.APIKey == "" {
		c.Voice.APIKey = envAPIKey()
	}
	if c.Voice.Endpoint == "" {
		c.Voice.Endpoint = "https://api.openai.com/v1"
	}
	if c.Voice.STTModel == "" {
		c.Voice.STTModel = "whisper-1"
	}
	if c.Voice.ExtractModel == "" {
		c.Voice.ExtractModel = "gpt-4o-mini"
	}
	if c.Voice.TTSModel == "" {
		c.Voice.TTSModel = "tts-1"
	}
	if c.Voice.TTSVoice == "" {
		c.Voice.TTSVoice = "alloy"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.CORSOrigin == "" {
		c.Server.CORSOrigin = "*"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 5
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = 10
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 60 * time.Second
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 25 << 20
	}
}

func envAPIKey() string {
	if v := os.Getenv("HOSPITALVOICE_API_KEY"); v != "" {
		return v
	}
	return os.Getenv("OPENAI_API_KEY")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("openai embedding provider requires api_key")
		}
	case "ollama", "local":
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}

	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got: %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 2048 {
		return fmt.Errorf("batch_size must be between 1 and 2048, got: %d", c.Embedding.BatchSize)
	}
	if c.Data.Path == "" {
		return fmt.Errorf("data.path is required")
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got: %d", c.Search.TopK)
	}
	if c.Search.Overfetch < 1 {
		return fmt.Errorf("overfetch must be at least 1, got: %d", c.Search.Overfetch)
	}

	switch c.Search.ExtractionMode {
	case ExtractionStructured, ExtractionFreeText:
	default:
		return fmt.Errorf("unsupported extraction_mode: %s", c.Search.ExtractionMode)
	}

	return c.validateVoice()
}

// validateVoice checks that the transcriber emits what the extractor reads
func (c *Config) validateVoice() error {
	switch c.Voice.STTProvider {
	case STTOpenAI:
		if c.Search.ExtractionMode == ExtractionStructured {
			return fmt.Errorf("extraction_mode %q needs stt_provider %q, got %q (plain transcripts carry no entity JSON)",
				ExtractionStructured, STTOpenAIStructured, c.Voice.STTProvider)
		}
	case STTOpenAIStructured:
		if c.Search.ExtractionMode != ExtractionStructured {
			return fmt.Errorf("stt_provider %q emits entity JSON and needs extraction_mode %q, got %q",
				STTOpenAIStructured, ExtractionStructured, c.Search.ExtractionMode)
		}
	default:
		return fmt.Errorf("unsupported stt_provider: %s", c.Voice.STTProvider)
	}
	return nil
}

// SaveToFile saves the configuration to a specific file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

const defaultConfigTemplate = `# hospitalvoice configuration
#
# Default location: $HOME/.hospitalvoice/config/hospitalvoice.yaml

embedding:
  # Provider: "openai", "ollama" or "local"
  # The index must be rebuilt whenever provider or model changes.
  provider: openai
  model: text-embedding-3-small
  api_key: your-openai-api-key
  batch_size: 64

  # Ollama (alternative)
  # provider: ollama
  # endpoint: http://localhost:11434
  # model: all-minilm

data:
  path: $HOME/.hospitalvoice/data/hospitals.db
  input: ./data/**/*.csv

search:
  top_k: 3
  # "structured" expects the transcriber to return a JSON entity array,
  # "freetext" matches plain transcripts against the directory.
  extraction_mode: freetext

voice:
  # "openai" returns a plain transcript (extraction_mode: freetext),
  # "openai-structured" adds an entity extraction step (extraction_mode: structured).
  stt_provider: openai
  api_key: your-openai-api-key
  stt_model: whisper-1
  extract_model: gpt-4o-mini
  tts_model: tts-1
  tts_voice: alloy

server:
  addr: ":8000"
  cors_origin: "*"
`

// WriteDefaultTemplate creates a default configuration file if it does not exist.
// It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}
