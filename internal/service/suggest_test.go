package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		n       int
		want    []string
	}{
		{
			name:    "json list",
			content: `["What is your favorite book?", "Where did you grow up?"]`,
			n:       3,
			want:    []string{"What is your favorite book?", "Where did you grow up?"},
		},
		{
			name:    "json list truncated",
			content: `["a?", "b?", "c?", "d?"]`,
			n:       2,
			want:    []string{"a?", "b?"},
		},
		{
			name:    "list inside prose",
			content: "Sure! Here you go:\n[\"First?\", \"Second?\"]\nEnjoy.",
			n:       5,
			want:    []string{"First?", "Second?"},
		},
		{
			name:    "bulleted lines",
			content: "- First?\n* Second?\n• Third?\n\n",
			n:       5,
			want:    []string{"First?", "Second?", "Third?"},
		},
		{
			name:    "empty",
			content: "   ",
			n:       3,
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSuggestions(tt.content, tt.n))
		})
	}
}

func TestSuggestionService_Suggest(t *testing.T) {
	chat := new(MockChatCompleter)
	persona := new(MockPersonaProvider)
	persona.On("Get", mock.Anything).Return("You are Sam.")
	chat.On("ChatComplete", mock.Anything, fmt.Sprintf(suggestPrompt, 2, "You are Sam."), "").
		Return(`["Favorite trail?", "First job?"]`, nil)

	got := NewSuggestionService(chat, persona).Suggest(context.Background(), 2)

	assert.Equal(t, []string{"Favorite trail?", "First job?"}, got)
	chat.AssertExpectations(t)
}

func TestSuggestionService_Bounds(t *testing.T) {
	chat := new(MockChatCompleter)
	persona := new(MockPersonaProvider)
	persona.On("Get", mock.Anything).Return("")
	chat.On("ChatComplete", mock.Anything, fmt.Sprintf(suggestPrompt, defaultSuggestions, ""), "").Return(`["a?"]`, nil)
	chat.On("ChatComplete", mock.Anything, fmt.Sprintf(suggestPrompt, maxSuggestions, ""), "").Return(`["b?"]`, nil)
	svc := NewSuggestionService(chat, persona)

	assert.Equal(t, []string{"a?"}, svc.Suggest(context.Background(), 0))
	assert.Equal(t, []string{"b?"}, svc.Suggest(context.Background(), 50))
}

func TestSuggestionService_Fallbacks(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"upstream error", "", errors.New("boom")},
		{"empty reply", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := new(MockChatCompleter)
			persona := new(MockPersonaProvider)
			persona.On("Get", mock.Anything).Return("")
			chat.On("ChatComplete", mock.Anything, mock.Anything, mock.Anything).Return(tt.reply, tt.err)

			got := NewSuggestionService(chat, persona).Suggest(context.Background(), 2)

			assert.Equal(t, FallbackSuggestions[:2], got)
		})
	}
}
