package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Staleness keys decide when a previously embedded file is re-embedded.
const (
	StalenessByName    = "name"
	StalenessByContent = "content"
)

// Append strategies decide how much of the corpus is re-embedded on append.
const (
	AppendFull  = "full"
	AppendDelta = "delta"
)

// State backends.
const (
	BackendDir = "dir"
	BackendS3  = "s3"
)

// Transcription providers.
const (
	TranscribeNone       = ""
	TranscribeAssemblyAI = "assemblyai"
	TranscribeWhisper    = "whisper"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	CorpusDir    string `envconfig:"CORPUS_DIR" default:"data"`
	StateBackend string `envconfig:"STATE_BACKEND" default:"dir"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"askme-state"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Prefix    string `envconfig:"S3_PREFIX"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"0"`

	// Chat falls back to the OpenAI key and URL when unset.
	ChatAPIKey  string `envconfig:"CHAT_API_KEY"`
	ChatBaseURL string `envconfig:"CHAT_BASE_URL"`
	ChatModel   string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	TranscribeProvider     string        `envconfig:"TRANSCRIBE_PROVIDER"`
	AssemblyAIAPIKey       string        `envconfig:"ASSEMBLYAI_API_KEY"`
	AssemblyAIBaseURL      string        `envconfig:"ASSEMBLYAI_BASE_URL" default:"https://api.assemblyai.com/v2"`
	TranscribePollInterval time.Duration `envconfig:"TRANSCRIBE_POLL_INTERVAL" default:"3s"`
	TranscribeMaxPolls     int           `envconfig:"TRANSCRIBE_MAX_POLLS" default:"200"`

	ChunkSize      int    `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap   int    `envconfig:"CHUNK_OVERLAP" default:"100"`
	RetrieveK      int    `envconfig:"RETRIEVE_K" default:"10"`
	StalenessKey   string `envconfig:"STALENESS_KEY" default:"name"`
	AppendStrategy string `envconfig:"APPEND_STRATEGY" default:"full"`
	TonesFile      string `envconfig:"TONES_FILE"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`

	RescanInterval time.Duration `envconfig:"RESCAN_INTERVAL" default:"0s"`
	Watch          bool          `envconfig:"WATCH" default:"false"`
	WatchDebounce  time.Duration `envconfig:"WATCH_DEBOUNCE" default:"2s"`

	SentryDSN         string  `envconfig:"SENTRY_DSN"`
	SentryEnvironment string  `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
	SentrySampleRate  float64 `envconfig:"SENTRY_SAMPLE_RATE" default:"1.0"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("ASKME", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects enumerated settings outside their allowed values.
func (c *Config) Validate() error {
	switch c.StalenessKey {
	case StalenessByName, StalenessByContent:
	default:
		return fmt.Errorf("invalid STALENESS_KEY %q: want %q or %q", c.StalenessKey, StalenessByName, StalenessByContent)
	}
	switch c.AppendStrategy {
	case AppendFull, AppendDelta:
	default:
		return fmt.Errorf("invalid APPEND_STRATEGY %q: want %q or %q", c.AppendStrategy, AppendFull, AppendDelta)
	}
	switch c.StateBackend {
	case BackendDir, BackendS3:
	default:
		return fmt.Errorf("invalid STATE_BACKEND %q: want %q or %q", c.StateBackend, BackendDir, BackendS3)
	}
	switch c.TranscribeProvider {
	case TranscribeNone, TranscribeAssemblyAI, TranscribeWhisper:
	default:
		return fmt.Errorf("invalid TRANSCRIBE_PROVIDER %q", c.TranscribeProvider)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid chunking: CHUNK_OVERLAP (%d) must be in [0, CHUNK_SIZE (%d))", c.ChunkOverlap, c.ChunkSize)
	}
	if c.TranscribeMaxPolls <= 0 {
		return fmt.Errorf("invalid TRANSCRIBE_MAX_POLLS %d: must be positive", c.TranscribeMaxPolls)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.StateBackend == BackendS3 && c.S3Bucket != ""
}

func (c *Config) HasStaticS3Credentials() bool {
	return c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

// ChatKey returns the chat API key, falling back to the OpenAI key.
func (c *Config) ChatKey() string {
	if c.ChatAPIKey != "" {
		return c.ChatAPIKey
	}
	return c.OpenAIAPIKey
}

// ChatURL returns the chat base URL, falling back to the OpenAI base URL.
func (c *Config) ChatURL() string {
	if c.ChatBaseURL != "" {
		return c.ChatBaseURL
	}
	return c.OpenAIBaseURL
}
