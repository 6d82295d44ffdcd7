package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
)

const (
	defaultSuggestions = 3
	maxSuggestions     = 10
)

// FallbackSuggestions are offered when the chat model gives nothing usable
var FallbackSuggestions = []string{
	"What is a good question to add?",
	"What is a useful fact?",
	"What is a common FAQ?",
}

const suggestPrompt = "You are a helpful assistant. Based on the following persona, suggest %d personal, diverse, " +
	"or random introspective, but short and fun questions that a user could add to a knowledge base as Q&A pairs. " +
	"Return only a JSON list of questions.\n\nPersona:\n%s"

var jsonArrayRe = regexp.MustCompile(`(?s)\[(.*?)\]`)

// SuggestionService proposes questions the user could answer manually
type SuggestionService struct {
	chat    ChatCompleter
	persona PersonaProvider
}

func NewSuggestionService(chat ChatCompleter, persona PersonaProvider) *SuggestionService {
	return &SuggestionService{chat: chat, persona: persona}
}

// Suggest returns up to n questions. It never fails: any upstream or
// parsing problem yields the fallback questions.
func (s *SuggestionService) Suggest(ctx context.Context, n int) []string {
	if n <= 0 {
		n = defaultSuggestions
	}
	if n > maxSuggestions {
		n = maxSuggestions
	}

	prompt := fmt.Sprintf(suggestPrompt, n, s.persona.Get(ctx))
	content, err := s.chat.ChatComplete(ctx, prompt, "")
	if err != nil {
		log.Printf("suggest: chat failed, using fallbacks: %v", err)
		return fallbacks(n)
	}

	questions := ParseSuggestions(content, n)
	if len(questions) == 0 {
		return fallbacks(n)
	}
	return questions
}

// ParseSuggestions reads a model reply as a JSON list, then as the first
// bracketed list inside prose, then as one question per line.
func ParseSuggestions(content string, n int) []string {
	content = strings.TrimSpace(content)

	var items []interface{}
	if err := json.Unmarshal([]byte(content), &items); err == nil {
		out := make([]string, 0, len(items))
		for _, it := range items {
			if q := strings.TrimSpace(fmt.Sprint(it)); q != "" {
				out = append(out, q)
			}
		}
		return limit(out, n)
	}

	if m := jsonArrayRe.FindStringSubmatch(content); m != nil {
		var out []string
		for _, part := range strings.Split(m[1], ",") {
			if q := strings.Trim(part, " \"\n\t"); q != "" {
				out = append(out, q)
			}
		}
		return limit(out, n)
	}

	var out []string
	for _, line := range strings.Split(content, "\n") {
		if q := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "-*• ")); q != "" {
			out = append(out, q)
		}
	}
	return limit(out, n)
}

func limit(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func fallbacks(n int) []string {
	return limit(append([]string(nil), FallbackSuggestions...), n)
}
