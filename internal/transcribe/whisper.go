package transcribe

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/askme/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// AudioAPI is the slice of the go-openai client Whisper needs.
type AudioAPI interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// Whisper transcribes through an OpenAI-compatible /audio/transcriptions
// endpoint. The call is synchronous so there is nothing to poll.
type Whisper struct {
	api   AudioAPI
	model string
}

func NewWhisper(apiKey, baseURL string) *Whisper {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewWhisperWithAPI(openai.NewClientWithConfig(cfg), openai.Whisper1)
}

func NewWhisperWithAPI(api AudioAPI, model string) *Whisper {
	if model == "" {
		model = openai.Whisper1
	}
	return &Whisper{api: api, model: model}
}

func (w *Whisper) Transcribe(ctx context.Context, path string) (string, error) {
	resp, err := w.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domain.WithCause(domain.ErrTranscriptionTimeout, err)
		}
		return "", domain.WithCause(domain.ErrTranscriptionFailed, fmt.Errorf("failed to transcribe: %w", err))
	}
	return resp.Text, nil
}
