package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/askme/internal/api"
	"github.com/cloo-solutions/askme/internal/domain"
	"github.com/cloo-solutions/askme/internal/ingest"
	"github.com/cloo-solutions/askme/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCorpusSession struct {
	mock.Mock
}

func (m *MockCorpusSession) Corpus() *service.Corpus {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*service.Corpus)
}

func (m *MockCorpusSession) Ingest(ctx context.Context) (*service.Corpus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Corpus), args.Error(1)
}

func (m *MockCorpusSession) Upload(ctx context.Context, name string, r io.Reader) (*service.Corpus, error) {
	data, _ := io.ReadAll(r)
	args := m.Called(ctx, name, string(data))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Corpus), args.Error(1)
}

func (m *MockCorpusSession) AddManualEntry(ctx context.Context, question, answer string) (*service.Corpus, error) {
	args := m.Called(ctx, question, answer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Corpus), args.Error(1)
}

func (m *MockCorpusSession) Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchHit), args.Error(1)
}

func testCorpus(t *testing.T) *service.Corpus {
	t.Helper()
	state := domain.NewCorpusState("m1")
	require.NoError(t, state.Append("bio.txt", []string{"I sail.", "I code."}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, state.Append(domain.ManualQAFile, []string{"Q: Pet?\nA: A cat."}, [][]float32{{1, 1}}))
	state.Files = []string{"bio.txt"}
	return &service.Corpus{State: state}
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCorpusHandler_ListFiles(t *testing.T) {
	session := new(MockCorpusSession)
	session.On("Corpus").Return(testCorpus(t))
	handler := NewCorpusHandler(session)

	w := httptest.NewRecorder()
	handler.ListFiles(w, httptest.NewRequest(http.MethodGet, "/files", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp CorpusResponse
	decodeData(t, w, &resp)
	assert.Equal(t, 3, resp.Chunks)
	assert.Equal(t, []service.FileSummary{{Name: "bio.txt", Chunks: 2}, {Name: domain.ManualQAFile, Chunks: 1}}, resp.Files)
}

func TestCorpusHandler_Ingest(t *testing.T) {
	session := new(MockCorpusSession)
	session.On("Ingest", mock.Anything).Return(testCorpus(t), nil)
	handler := NewCorpusHandler(session)

	w := httptest.NewRecorder()
	handler.Ingest(w, httptest.NewRequest(http.MethodPost, "/ingest", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	session.AssertExpectations(t)
}

func TestCorpusHandler_IngestFailure(t *testing.T) {
	session := new(MockCorpusSession)
	session.On("Ingest", mock.Anything).Return(nil, domain.WithCause(domain.ErrPersistenceFailed, assert.AnError))
	handler := NewCorpusHandler(session)

	w := httptest.NewRecorder()
	handler.Ingest(w, httptest.NewRequest(http.MethodPost, "/ingest", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, domain.ErrCodePersistenceFailed, decodeError(t, w).Code)
}

func multipartRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCorpusHandler_Upload(t *testing.T) {
	session := new(MockCorpusSession)
	session.On("Upload", mock.Anything, "notes.txt", "hello there").Return(testCorpus(t), nil)
	handler := NewCorpusHandler(session)

	w := httptest.NewRecorder()
	handler.Upload(w, multipartRequest(t, "file", "notes.txt", "hello there"))

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp UploadResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "notes.txt", resp.File)
	assert.Equal(t, 3, resp.Chunks)
	session.AssertExpectations(t)
}

func TestCorpusHandler_UploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"already embedded", domain.ErrFileAlreadyEmbedded, http.StatusConflict},
		{"unsupported", &ingest.ExtractionError{Path: "deck.pptx", Err: domain.ErrUnsupportedFileType}, http.StatusUnsupportedMediaType},
		{"transcription", domain.WithCause(domain.ErrTranscriptionFailed, assert.AnError), http.StatusUnprocessableEntity},
		{"reserved", domain.ErrReservedFileName, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := new(MockCorpusSession)
			session.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)
			handler := NewCorpusHandler(session)

			w := httptest.NewRecorder()
			handler.Upload(w, multipartRequest(t, "file", "deck.pptx", "x"))

			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestCorpusHandler_UploadMissingFile(t *testing.T) {
	session := new(MockCorpusSession)
	handler := NewCorpusHandler(session)

	w := httptest.NewRecorder()
	handler.Upload(w, multipartRequest(t, "attachment", "notes.txt", "x"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "file is required", decodeError(t, w).Error)
	session.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestCorpusHandler_UploadNotMultipart(t *testing.T) {
	handler := NewCorpusHandler(new(MockCorpusSession))

	w := httptest.NewRecorder()
	handler.Upload(w, httptest.NewRequest(http.MethodPost, "/files", bytes.NewBufferString("{}")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCorpusHandler_AddManualEntry(t *testing.T) {
	session := new(MockCorpusSession)
	session.On("AddManualEntry", mock.Anything, "Pet?", "A cat.").Return(testCorpus(t), nil)
	handler := NewCorpusHandler(session)

	body, _ := json.Marshal(ManualEntryRequest{Question: "Pet?", Answer: "A cat."})
	w := httptest.NewRecorder()
	handler.AddManualEntry(w, httptest.NewRequest(http.MethodPost, "/qa", bytes.NewReader(body)))

	assert.Equal(t, http.StatusCreated, w.Code)
	session.AssertExpectations(t)
}

func TestCorpusHandler_AddManualEntryValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", "{", "invalid request body"},
		{"missing question", `{"answer":"a"}`, "question is required"},
		{"missing answer", `{"question":"q"}`, "answer is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCorpusHandler(new(MockCorpusSession))

			w := httptest.NewRecorder()
			handler.AddManualEntry(w, httptest.NewRequest(http.MethodPost, "/qa", bytes.NewBufferString(tt.body)))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decodeError(t, w).Error)
		})
	}
}

func TestCorpusHandler_Search(t *testing.T) {
	session := new(MockCorpusSession)
	session.On("Search", mock.Anything, "hobbies", defaultSearchK).Return([]domain.SearchHit{
		{Position: 0, Distance: 0.25, Text: "I sail.", File: "bio.txt"},
	}, nil)
	handler := NewCorpusHandler(session)

	w := httptest.NewRecorder()
	handler.Search(w, httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString(`{"query":"hobbies"}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp SearchResponse
	decodeData(t, w, &resp)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, SearchHitResponse{Text: "I sail.", File: "bio.txt", Position: 0, Distance: 0.25}, resp.Hits[0])
}

func TestCorpusHandler_SearchUpstreamFailure(t *testing.T) {
	session := new(MockCorpusSession)
	session.On("Search", mock.Anything, "hobbies", 2).Return(nil, domain.WithCause(domain.ErrUpstreamFailed, assert.AnError))
	handler := NewCorpusHandler(session)

	w := httptest.NewRecorder()
	handler.Search(w, httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString(`{"query":"hobbies","k":2}`)))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}
