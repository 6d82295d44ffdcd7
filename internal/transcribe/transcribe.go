package transcribe

import (
	"context"
	"fmt"
)

// Transcriber turns a local audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Providers understood by New.
const (
	ProviderNone       = ""
	ProviderAssemblyAI = "assemblyai"
	ProviderWhisper    = "whisper"
)

// Config selects and configures a provider.
type Config struct {
	Provider      string
	AssemblyAI    AssemblyAIConfig
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// New returns the configured provider, or nil when transcription is off.
func New(cfg Config) (Transcriber, error) {
	switch cfg.Provider {
	case ProviderNone:
		return nil, nil
	case ProviderAssemblyAI:
		if cfg.AssemblyAI.APIKey == "" {
			return nil, fmt.Errorf("assemblyai transcription requires an API key")
		}
		return NewAssemblyAI(cfg.AssemblyAI), nil
	case ProviderWhisper:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("whisper transcription requires an OpenAI API key")
		}
		return NewWhisper(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), nil
	}
	return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
}
