package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cloo-solutions/askme/internal/api"
	"github.com/cloo-solutions/askme/internal/domain"
	"github.com/cloo-solutions/askme/internal/service"
)

const (
	defaultSearchK     = 5
	maxMultipartMemory = 8 << 20
)

// CorpusSession is the live corpus the handlers read and update
type CorpusSession interface {
	Corpus() *service.Corpus
	Ingest(ctx context.Context) (*service.Corpus, error)
	Upload(ctx context.Context, name string, r io.Reader) (*service.Corpus, error)
	AddManualEntry(ctx context.Context, question, answer string) (*service.Corpus, error)
	Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error)
}

type CorpusHandler struct {
	session CorpusSession
}

func NewCorpusHandler(session CorpusSession) *CorpusHandler {
	return &CorpusHandler{session: session}
}

type CorpusResponse struct {
	Files  []service.FileSummary `json:"files"`
	Chunks int                   `json:"chunks"`
}

type UploadResponse struct {
	File string `json:"file"`
	CorpusResponse
}

type ManualEntryRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type SearchHitResponse struct {
	Text     string  `json:"text"`
	File     string  `json:"file"`
	Position int     `json:"position"`
	Distance float32 `json:"distance"`
}

type SearchResponse struct {
	Hits []SearchHitResponse `json:"hits"`
}

func corpusToResponse(c *service.Corpus) CorpusResponse {
	return CorpusResponse{Files: c.Files(), Chunks: c.Len()}
}

func (h *CorpusHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, corpusToResponse(h.session.Corpus()))
}

func (h *CorpusHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	c, err := h.session.Ingest(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, corpusToResponse(c))
}

func (h *CorpusHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	c, err := h.session.Upload(r.Context(), header.Filename, file)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, UploadResponse{File: header.Filename, CorpusResponse: corpusToResponse(c)})
}

func (h *CorpusHandler) AddManualEntry(w http.ResponseWriter, r *http.Request) {
	var req ManualEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.Answer == "" {
		api.Error(w, http.StatusBadRequest, "answer is required")
		return
	}

	c, err := h.session.AddManualEntry(r.Context(), req.Question, req.Answer)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, corpusToResponse(c))
}

func (h *CorpusHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.K <= 0 {
		req.K = defaultSearchK
	}

	hits, err := h.session.Search(r.Context(), req.Query, req.K)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SearchResponse{Hits: make([]SearchHitResponse, len(hits))}
	for i, hit := range hits {
		resp.Hits[i] = SearchHitResponse{
			Text:     hit.Text,
			File:     hit.File,
			Position: hit.Position,
			Distance: hit.Distance,
		}
	}
	api.Success(w, http.StatusOK, resp)
}
