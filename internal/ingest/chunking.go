package ingest

import (
	"strings"

	"github.com/cloo-solutions/askme/internal/domain"
)

// ChunkConfig controls how normalized text is split into chunks.
// Sizes are counted in runes.
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    500,
		Overlap: 100,
	}
}

// Validate rejects configurations that could not make forward progress.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 || c.Overlap < 0 || c.Overlap >= c.Size {
		return domain.ErrInvalidChunkConfig
	}
	return nil
}

// Chunk splits text into paragraphs, falling back to fixed-size windows when
// the text has a single paragraph or a paragraph longer than twice the size.
// Chunks may still be blank; callers filter those out.
func Chunk(text string, cfg ChunkConfig) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) <= 1 {
		return fixedWindows(text, cfg), nil
	}
	for _, p := range paragraphs {
		if runeLen(p) > 2*cfg.Size {
			return fixedWindows(text, cfg), nil
		}
	}
	return paragraphs, nil
}

func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fixedWindows(text string, cfg ChunkConfig) []string {
	runes := []rune(text)
	step := cfg.Size - cfg.Overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + cfg.Size
		if end > len(runes) {
			end = len(runes)
		}
		if w := strings.TrimSpace(string(runes[start:end])); w != "" {
			chunks = append(chunks, w)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// dropBlank removes chunks that are empty after trimming.
func dropBlank(chunks []string) []string {
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
