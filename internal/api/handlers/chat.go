package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/askme/internal/api"
	"github.com/cloo-solutions/askme/internal/service"
)

// CorpusSource returns the current corpus snapshot
type CorpusSource interface {
	Corpus() *service.Corpus
}

type Asker interface {
	Ask(ctx context.Context, c *service.Corpus, question, tone string) (*service.Answer, error)
}

type ToneCatalog interface {
	List() []service.Tone
	Default() service.Tone
}

type Suggester interface {
	Suggest(ctx context.Context, n int) []string
}

type PersonaProvider interface {
	Lookup(ctx context.Context) (string, error)
}

// ChatHandler serves the persona-facing endpoints
type ChatHandler struct {
	corpus    CorpusSource
	asker     Asker
	tones     ToneCatalog
	suggester Suggester
	persona   PersonaProvider
}

func NewChatHandler(corpus CorpusSource, asker Asker, tones ToneCatalog, suggester Suggester, persona PersonaProvider) *ChatHandler {
	return &ChatHandler{
		corpus:    corpus,
		asker:     asker,
		tones:     tones,
		suggester: suggester,
		persona:   persona,
	}
}

type AskRequest struct {
	Question string `json:"question"`
	Tone     string `json:"tone"`
}

type TonesResponse struct {
	Default string         `json:"default"`
	Tones   []service.Tone `json:"tones"`
}

type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

type PersonaResponse struct {
	Persona string `json:"persona"`
	Failed  bool   `json:"failed,omitempty"`
}

// Ask answers a question. An unreachable chat model still yields 200 with
// failed set and the upstream error as the answer text.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := h.asker.Ask(r.Context(), h.corpus.Corpus(), req.Question, req.Tone)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, answer)
}

func (h *ChatHandler) ListTones(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, TonesResponse{
		Default: h.tones.Default().Name,
		Tones:   h.tones.List(),
	})
}

func (h *ChatHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "n must be an integer")
			return
		}
		n = parsed
	}
	api.Success(w, http.StatusOK, SuggestionsResponse{Suggestions: h.suggester.Suggest(r.Context(), n)})
}

// Persona returns the persona prompt. A failed construction still yields 200
// with failed set and the error as the persona text.
func (h *ChatHandler) Persona(w http.ResponseWriter, r *http.Request) {
	persona, err := h.persona.Lookup(r.Context())
	if err != nil {
		api.Success(w, http.StatusOK, PersonaResponse{Persona: service.PersonaErrorText(err), Failed: true})
		return
	}
	api.Success(w, http.StatusOK, PersonaResponse{Persona: persona})
}
