// Package transcribe turns local audio files into text through a remote
// speech-to-text provider.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/askme/internal/domain"
)

const (
	DefaultAssemblyAIURL = "https://api.assemblyai.com/v2"
	DefaultPollInterval  = 3 * time.Second
	DefaultMaxPolls      = 200
)

// Transcript statuses reported by AssemblyAI.
const (
	statusCompleted = "completed"
	statusError     = "error"
	statusFailed    = "failed"
)

// AssemblyAIConfig configures an AssemblyAI transcriber.
type AssemblyAIConfig struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	MaxPolls     int
	HTTPClient   *http.Client
}

// AssemblyAI uploads audio, requests a transcript, and polls until it is
// ready or the poll budget is spent.
type AssemblyAI struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	maxPolls     int
	httpClient   *http.Client
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assemblyai error (%d): %s", e.StatusCode, e.Message)
}

func NewAssemblyAI(cfg AssemblyAIConfig) *AssemblyAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAssemblyAIURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &AssemblyAI{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		pollInterval: cfg.PollInterval,
		maxPolls:     cfg.MaxPolls,
		httpClient:   cfg.HTTPClient,
	}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL string `json:"audio_url"`
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// Transcribe returns the transcript of the audio file at path.
func (a *AssemblyAI) Transcribe(ctx context.Context, path string) (string, error) {
	audioURL, err := a.upload(ctx, path)
	if err != nil {
		return "", domain.WithCause(domain.ErrTranscriptionFailed, err)
	}

	var created transcriptResponse
	if err := a.doJSON(ctx, http.MethodPost, "/transcript", transcriptRequest{AudioURL: audioURL}, &created); err != nil {
		return "", domain.WithCause(domain.ErrTranscriptionFailed, fmt.Errorf("failed to create transcript: %w", err))
	}
	if created.ID == "" {
		return "", domain.WithCause(domain.ErrTranscriptionFailed, fmt.Errorf("transcript id missing from response"))
	}

	return a.poll(ctx, created.ID, filepath.Base(path))
}

func (a *AssemblyAI) poll(ctx context.Context, id, name string) (string, error) {
	for attempt := 1; attempt <= a.maxPolls; attempt++ {
		var tr transcriptResponse
		if err := a.doJSON(ctx, http.MethodGet, "/transcript/"+id, nil, &tr); err != nil {
			return "", domain.WithCause(domain.ErrTranscriptionFailed, fmt.Errorf("failed to poll transcript: %w", err))
		}

		switch tr.Status {
		case statusCompleted:
			return tr.Text, nil
		case statusError, statusFailed:
			return "", domain.WithCause(domain.ErrTranscriptionFailed, fmt.Errorf("transcript %s: %s", id, tr.Error))
		}

		if attempt == a.maxPolls {
			break
		}
		select {
		case <-ctx.Done():
			return "", domain.WithCause(domain.ErrTranscriptionTimeout, ctx.Err())
		case <-time.After(a.pollInterval):
		}
	}

	log.Printf("transcribe: %s still pending after %d polls", name, a.maxPolls)
	return "", domain.WithCause(domain.ErrTranscriptionTimeout, fmt.Errorf("transcript %s not ready after %d polls", id, a.maxPolls))
}

func (a *AssemblyAI) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/upload", f)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var up uploadResponse
	if err := a.send(req, &up); err != nil {
		return "", fmt.Errorf("failed to upload audio: %w", err)
	}
	if up.UploadURL == "" {
		return "", fmt.Errorf("upload_url missing from response")
	}
	return up.UploadURL, nil
}

func (a *AssemblyAI) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", a.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, out)
}

func (a *AssemblyAI) send(req *http.Request, out interface{}) error {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
