package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cloo-solutions/askme/internal/domain"
	"github.com/cloo-solutions/askme/internal/openai"
)

// IntroFile is the corpus file a persona is derived from
const IntroFile = "intro.txt"

const personaSystemPrompt = "You are an expert at extracting personas and tone from background information. " +
	"Given the following introduction, write a concise persona description (1-2 sentences) that can be used " +
	"as a system prompt for a chatbot to answer as this person. Focus on style, tone, and relevant background."

// ChatCompleter answers a system and user prompt pair
type ChatCompleter interface {
	ChatComplete(ctx context.Context, system, user string) (string, error)
}

// PersonaStore caches the derived persona
type PersonaStore interface {
	LoadPersona(ctx context.Context) (string, error)
	SavePersona(ctx context.Context, persona string) error
}

// PersonaService derives a persona from intro.txt once and caches it
type PersonaService struct {
	mu    sync.Mutex
	chat  ChatCompleter
	store PersonaStore
	dir   string
}

func NewPersonaService(chat ChatCompleter, store PersonaStore, dir string) *PersonaService {
	return &PersonaService{chat: chat, store: store, dir: dir}
}

// Get returns the persona for prompt building. Failures yield "" so the
// caller falls back to the default persona.
func (s *PersonaService) Get(ctx context.Context) string {
	persona, err := s.Lookup(ctx)
	if err != nil {
		return ""
	}
	return persona
}

// Lookup returns the cached persona, deriving it on first use. Without an
// intro file it returns "". A chat model failure is returned and nothing is
// cached, so a later call can try again.
func (s *PersonaService) Lookup(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, err := s.store.LoadPersona(ctx)
	if err == nil && cached != "" {
		return cached, nil
	}
	if err != nil && !errors.Is(err, domain.ErrStateMissing) {
		log.Printf("persona: failed to read cache: %v", err)
	}

	intro, err := os.ReadFile(filepath.Join(s.dir, IntroFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("persona: failed to read %s: %v", IntroFile, err)
		}
		return "", nil
	}
	introText := strings.TrimSpace(string(intro))
	if introText == "" {
		return "", nil
	}

	persona, err := s.chat.ChatComplete(ctx, personaSystemPrompt, introText)
	if err != nil {
		log.Printf("persona: construction failed: %v", err)
		return "", err
	}
	persona = strings.TrimSpace(persona)
	if persona == "" {
		return "", nil
	}

	if err := s.store.SavePersona(ctx, persona); err != nil {
		log.Printf("persona: failed to cache: %v", err)
	}
	return persona, nil
}

// PersonaErrorText renders a construction failure for display, carrying the
// upstream status when there is one.
func PersonaErrorText(err error) string {
	var upErr *openai.UpstreamError
	if errors.As(err, &upErr) {
		return fmt.Sprintf("[Persona construction error: %d]", upErr.StatusCode)
	}
	return fmt.Sprintf("[Persona construction error] - %v", err)
}
