package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloo-solutions/askme/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

type fakePageReader struct {
	pages []string
	err   error
}

func (f fakePageReader) ReadPages(path string) ([]string, error) {
	return f.pages, f.err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractor_Text(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "• Sky is blue.\n\n\n\nGrass is   green.\n")

	e := NewExtractor(DefaultChunkConfig(), nil)
	chunks, err := e.Extract(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, []string{"Sky is blue.", "Grass is green."}, chunks)
}

func TestExtractor_TextUppercaseExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "NOTES.TXT", "hello")

	e := NewExtractor(DefaultChunkConfig(), nil)
	chunks, err := e.Extract(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, chunks)
}

func TestExtractor_EmptyTextYieldsNoChunks(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.txt", "  \n\n\t")

	e := NewExtractor(DefaultChunkConfig(), nil)
	chunks, err := e.Extract(context.Background(), path)

	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestExtractor_MissingFile(t *testing.T) {
	e := NewExtractor(DefaultChunkConfig(), nil)

	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "gone.txt"))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	var extractErr *ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.Contains(t, extractErr.Path, "gone.txt")
}

func TestExtractor_Unsupported(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "slides.docx", "binary")

	e := NewExtractor(DefaultChunkConfig(), nil)

	_, err := e.Extract(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)

	assert.Nil(t, e.Scan(context.Background(), path))
}

func TestExtractor_PDF(t *testing.T) {
	reader := fakePageReader{pages: []string{"Page one text.", "", "Page two"}}
	e := NewExtractorWithPageReader(DefaultChunkConfig(), nil, reader)

	chunks, err := e.Extract(context.Background(), "/tmp/doc.pdf")

	require.NoError(t, err)
	assert.Equal(t, []string{"Page one text.", "Page two"}, chunks)
}

func TestExtractor_PDFPageBoundaryKeepsWordsApart(t *testing.T) {
	reader := fakePageReader{pages: []string{"end of page", "start of next"}}
	e := NewExtractorWithPageReader(DefaultChunkConfig(), nil, reader)

	chunks, err := e.Extract(context.Background(), "/tmp/doc.pdf")

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "end of page\nstart of next", chunks[0])
}

func TestExtractor_PDFReadError(t *testing.T) {
	reader := fakePageReader{err: errors.New("malformed pdf")}
	e := NewExtractorWithPageReader(DefaultChunkConfig(), nil, reader)

	_, err := e.Extract(context.Background(), "/tmp/doc.pdf")
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)

	assert.Nil(t, e.Scan(context.Background(), "/tmp/doc.pdf"))
}

func TestExtractor_PDFMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.pdf", "this is not a pdf")

	e := NewExtractor(DefaultChunkConfig(), nil)

	_, err := e.Extract(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestExtractor_Audio(t *testing.T) {
	ctx := context.Background()
	transcriber := new(MockTranscriber)
	transcriber.On("Transcribe", ctx, "/tmp/talk.mp3").Return("I grew up by the sea.\n\nI studied physics.", nil)

	e := NewExtractor(DefaultChunkConfig(), transcriber)
	chunks, err := e.Extract(ctx, "/tmp/talk.mp3")

	require.NoError(t, err)
	assert.Equal(t, []string{"I grew up by the sea.", "I studied physics."}, chunks)
	transcriber.AssertExpectations(t)
}

func TestExtractor_AudioFailure(t *testing.T) {
	ctx := context.Background()
	transcriber := new(MockTranscriber)
	transcriber.On("Transcribe", ctx, "/tmp/talk.wav").Return("", errors.New("status failed"))

	e := NewExtractor(DefaultChunkConfig(), transcriber)

	_, err := e.Extract(ctx, "/tmp/talk.wav")
	assert.ErrorIs(t, err, domain.ErrTranscriptionFailed)

	assert.Nil(t, e.Scan(ctx, "/tmp/talk.wav"))
}

func TestExtractor_AudioTimeoutKeepsCode(t *testing.T) {
	ctx := context.Background()
	transcriber := new(MockTranscriber)
	transcriber.On("Transcribe", ctx, "/tmp/talk.ogg").Return("", domain.ErrTranscriptionTimeout)

	e := NewExtractor(DefaultChunkConfig(), transcriber)

	_, err := e.Extract(ctx, "/tmp/talk.ogg")
	assert.ErrorIs(t, err, domain.ErrTranscriptionTimeout)
	assert.Equal(t, domain.ErrCodeTimeout, domain.CodeOf(err))
}

func TestExtractor_AudioWithoutTranscriber(t *testing.T) {
	e := NewExtractor(DefaultChunkConfig(), nil)

	_, err := e.Extract(context.Background(), "/tmp/talk.m4a")

	assert.ErrorIs(t, err, domain.ErrTranscriptionFailed)
}

func TestExtractor_ScanSkipsReservedFiles(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, ManifestFile, "notes.txt\n")
	persona := writeFile(t, dir, PersonaCacheFile, "You are Ada.")

	e := NewExtractor(DefaultChunkConfig(), nil)

	assert.Nil(t, e.Scan(context.Background(), manifest))
	assert.Nil(t, e.Scan(context.Background(), persona))
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved("embedded_files.txt"))
	assert.True(t, IsReserved("/data/persona_prompt.txt"))
	assert.False(t, IsReserved("notes.txt"))
}
