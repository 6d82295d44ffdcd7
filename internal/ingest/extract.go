// Package ingest turns source files into normalized, bounded-size chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/askme/internal/domain"
)

// Reserved control files that live next to the corpus but are never ingested.
const (
	ManifestFile     = "embedded_files.txt"
	PersonaCacheFile = "persona_prompt.txt"
)

// IsReserved reports whether name is a control file rather than corpus content.
func IsReserved(name string) bool {
	switch filepath.Base(name) {
	case ManifestFile, PersonaCacheFile:
		return true
	}
	return false
}

// ExtractionError carries the offending path of a failed extraction
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Transcriber turns a local audio file into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// PageReader returns the plain text of each PDF page in page order.
type PageReader interface {
	ReadPages(path string) ([]string, error)
}

// Extractor dispatches a file to the extraction strategy for its extension,
// then normalizes and chunks the result.
type Extractor struct {
	chunkCfg    ChunkConfig
	transcriber Transcriber
	pages       PageReader
}

// NewExtractor creates an Extractor. A nil transcriber makes audio files
// fail extraction.
func NewExtractor(chunkCfg ChunkConfig, transcriber Transcriber) *Extractor {
	return NewExtractorWithPageReader(chunkCfg, transcriber, PDFPageReader{})
}

// NewExtractorWithPageReader creates an Extractor with an explicit PDF reader.
func NewExtractorWithPageReader(chunkCfg ChunkConfig, transcriber Transcriber, pages PageReader) *Extractor {
	return &Extractor{
		chunkCfg:    chunkCfg,
		transcriber: transcriber,
		pages:       pages,
	}
}

// Extract is the strict path used for explicit single-file requests.
// Unsupported types and transcription failures are returned as errors.
func (e *Extractor) Extract(ctx context.Context, path string) ([]string, error) {
	raw, err := e.rawText(ctx, path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	chunks, err := Chunk(Normalize(raw), e.chunkCfg)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	return dropBlank(chunks), nil
}

// Scan is the lenient path used by bulk directory scans. Failures are
// logged and produce no chunks so one bad file never blocks the rest.
func (e *Extractor) Scan(ctx context.Context, path string) []string {
	if IsReserved(path) || domain.KindForPath(path) == domain.SourceKindUnsupported {
		return nil
	}
	chunks, err := e.Extract(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrTranscriptionFailed) || errors.Is(err, domain.ErrTranscriptionTimeout) {
			log.Printf("ingest: transcription of %s failed, skipping for now: %v", filepath.Base(path), err)
		} else {
			log.Printf("ingest: skipping %s: %v", filepath.Base(path), err)
		}
		return nil
	}
	return chunks
}

func (e *Extractor) rawText(ctx context.Context, path string) (string, error) {
	switch domain.KindForPath(path) {
	case domain.SourceKindText:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", domain.WithCause(domain.ErrExtractionFailed, err)
		}
		return string(data), nil
	case domain.SourceKindPDF:
		pages, err := e.pages.ReadPages(path)
		if err != nil {
			return "", domain.WithCause(domain.ErrExtractionFailed, err)
		}
		return joinPages(pages), nil
	case domain.SourceKindAudio:
		if e.transcriber == nil {
			return "", domain.WithCause(domain.ErrTranscriptionFailed, errors.New("no transcriber configured"))
		}
		transcript, err := e.transcriber.Transcribe(ctx, path)
		if err != nil {
			if domain.CodeOf(err) == "" {
				err = domain.WithCause(domain.ErrTranscriptionFailed, err)
			}
			return "", err
		}
		return transcript, nil
	}
	return "", domain.ErrUnsupportedFileType
}

// joinPages concatenates page text. A newline keeps the last word of one page
// from fusing with the first word of the next; the normalizer folds it.
func joinPages(pages []string) string {
	var total int
	for _, p := range pages {
		total += len(p) + 1
	}
	buf := make([]byte, 0, total)
	for i, p := range pages {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, p...)
	}
	return string(buf)
}
