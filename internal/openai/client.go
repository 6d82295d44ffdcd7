package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cloo-solutions/askme/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the model used when none is configured
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultChatModel is the chat model used when none is configured
	DefaultChatModel = openai.GPT4oMini

	// embedBatchSize caps the number of inputs sent in one embeddings request
	embedBatchSize = 32
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has an unexpected width
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrEmptyCompletion is returned when the chat model answers with no choices
	ErrEmptyCompletion = errors.New("chat completion returned no choices")
)

// EmbeddingAPI defines the interface for batch embedding generation.
// Implementations return one vector per input, in input order.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatAPI is the slice of the go-openai client used for chat completions
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// UpstreamError is a failed call to the remote model service. It matches
// domain.ErrUpstreamFailed with errors.Is.
type UpstreamError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (%d): %s", e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{domain.ErrUpstreamFailed, e.Err}
}

// Client wraps the OpenAI API client
type Client struct {
	api        EmbeddingAPI
	chat       ChatAPI
	model      string
	chatModel  string
	dimensions int
}

type OpenAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIAdapter(client *openai.Client, model openai.EmbeddingModel) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIAdapter{
		client: client,
		model:  model,
	}
}

// CreateEmbeddings calls the OpenAI API once for the whole batch and places
// each returned vector by its index.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d items for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || out[d.Index] != nil {
			return nil, fmt.Errorf("embedding response has invalid index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int

	ChatAPIKey  string
	ChatBaseURL string
	ChatModel   string
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
// Chat settings fall back to the embedding settings when empty.
func NewClientWithConfig(cfg Config) *Client {
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(DefaultEmbeddingModel)
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.ChatAPIKey == "" {
		cfg.ChatAPIKey = cfg.APIKey
	}
	if cfg.ChatBaseURL == "" {
		cfg.ChatBaseURL = cfg.BaseURL
	}

	return &Client{
		api:        NewOpenAIAdapter(newAPIClient(cfg.APIKey, cfg.BaseURL), openai.EmbeddingModel(cfg.EmbeddingModel)),
		chat:       newAPIClient(cfg.ChatAPIKey, cfg.ChatBaseURL),
		model:      cfg.EmbeddingModel,
		chatModel:  cfg.ChatModel,
		dimensions: cfg.EmbeddingDimensions,
	}
}

// NewClientWithAPIs wires explicit collaborators, mainly for tests.
func NewClientWithAPIs(api EmbeddingAPI, chat ChatAPI, model string, dimensions int) *Client {
	return &Client{
		api:        api,
		chat:       chat,
		model:      model,
		chatModel:  DefaultChatModel,
		dimensions: dimensions,
	}
}

func newAPIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// ModelName identifies the embedding model. It is persisted next to the
// vectors so a model switch can be detected.
func (c *Client) ModelName() string {
	return c.model
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in sub-batches and returns the vectors in input
// order. Every vector has the same width.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, ErrEmptyText
		}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.api.CreateEmbeddings(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding: %w", asUpstreamError(err))
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("failed to create embedding: got %d vectors for %d inputs", len(vectors), end-start)
		}
		out = append(out, vectors...)
	}

	expected := c.dimensions
	if expected <= 0 {
		expected = len(out[0])
	}
	for _, v := range out {
		if len(v) != expected || len(v) == 0 {
			return nil, fmt.Errorf("%w: got %d, expected %d", ErrWrongDimensions, len(v), expected)
		}
	}

	return out, nil
}

// ChatComplete sends a system and a user message and returns the first
// choice. Either message may be empty, in which case it is omitted.
func (c *Client) ChatComplete(ctx context.Context, system, user string) (string, error) {
	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	if user != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})
	}
	if len(messages) == 0 {
		return "", ErrEmptyText
	}

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: messages,
	})
	if err != nil {
		return "", asUpstreamError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// asUpstreamError lifts go-openai transport errors into an UpstreamError
// carrying the HTTP status and body. Other errors pass through.
func asUpstreamError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := string(reqErr.Body)
		if body == "" && reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &UpstreamError{StatusCode: reqErr.HTTPStatusCode, Body: body, Err: err}
	}
	return err
}
