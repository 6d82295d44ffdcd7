package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/askme/internal/domain"
	"github.com/cloo-solutions/askme/internal/openai"
	"github.com/cloo-solutions/askme/internal/telemetry"
)

// DefaultRetrieveK is the number of chunks given to the chat model
const DefaultRetrieveK = 10

const defaultPersona = "You are the person the questions are about."

const groundingInstruction = "Use the following context to answer the question in first person. Strictly stay within the provided context."

// Retriever returns the context text for a question
type Retriever interface {
	Retrieve(ctx context.Context, c *Corpus, query string, k int) (string, error)
}

// PersonaProvider returns the persona system prompt, or ""
type PersonaProvider interface {
	Get(ctx context.Context) string
}

// Answer is the reply shown to the user. Failed is set when the chat model
// could not be reached; Text then carries the upstream status and body.
type Answer struct {
	Text   string `json:"text"`
	Tone   string `json:"tone"`
	Failed bool   `json:"failed"`
}

// AnswerService answers questions grounded in retrieved corpus chunks
type AnswerService struct {
	retriever Retriever
	persona   PersonaProvider
	tones     *ToneCatalog
	chat      ChatCompleter
	k         int
}

func NewAnswerService(retriever Retriever, persona PersonaProvider, tones *ToneCatalog, chat ChatCompleter, k int) *AnswerService {
	if k <= 0 {
		k = DefaultRetrieveK
	}
	if tones == nil {
		tones = DefaultToneCatalog()
	}
	return &AnswerService{
		retriever: retriever,
		persona:   persona,
		tones:     tones,
		chat:      chat,
		k:         k,
	}
}

// Ask retrieves context for question and asks the chat model to answer in
// the persona's voice and the chosen tone.
func (s *AnswerService) Ask(ctx context.Context, c *Corpus, question, toneName string) (*Answer, error) {
	ctx, span := telemetry.StartSpan(ctx, "AnswerService.Ask", telemetry.SpanAttributes{
		Tone:      toneName,
		Operation: "ask",
	})
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrMissingRequiredField
	}
	tone, err := s.tones.Lookup(toneName)
	if err != nil {
		return nil, err
	}

	retrieved, err := s.retriever.Retrieve(ctx, c, question, s.k)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	system, user := BuildPrompts(s.persona.Get(ctx), tone, question, retrieved)
	text, err := s.chat.ChatComplete(ctx, system, user)
	if err != nil {
		span.SetError(err)
		return &Answer{Text: chatErrorText(err), Tone: tone.Name, Failed: true}, nil
	}
	return &Answer{Text: text, Tone: tone.Name}, nil
}

// BuildPrompts composes the system prompt from persona and tone, and the
// user prompt from the question and retrieved context.
func BuildPrompts(persona string, tone Tone, question, retrieved string) (system, user string) {
	if persona == "" {
		persona = defaultPersona
	}
	system = persona + "\n\n" + tone.Instruction
	user = fmt.Sprintf("%s\n\n%s\n%s", question, groundingInstruction, retrieved)
	return system, user
}

func chatErrorText(err error) string {
	var upErr *openai.UpstreamError
	if errors.As(err, &upErr) {
		return fmt.Sprintf("[Chat API error: %d] - %s", upErr.StatusCode, upErr.Body)
	}
	return fmt.Sprintf("[Chat API error] - %v", err)
}
