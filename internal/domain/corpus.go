package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SourceKind is the extraction strategy derived from a file extension
type SourceKind string

const (
	SourceKindText        SourceKind = "text"
	SourceKindPDF         SourceKind = "pdf"
	SourceKindAudio       SourceKind = "audio"
	SourceKindUnsupported SourceKind = "unsupported"
)

// ManualQAFile is the synthetic source name for manually authored Q&A pairs
const ManualQAFile = "manual_QA"

var (
	textExtensions  = []string{".txt"}
	pdfExtensions   = []string{".pdf"}
	audioExtensions = []string{".mp3", ".wav", ".ogg", ".m4a"}
)

// KindForPath maps a file path to its SourceKind, ignoring extension case.
func KindForPath(path string) SourceKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case contains(textExtensions, ext):
		return SourceKindText
	case contains(pdfExtensions, ext):
		return SourceKindPDF
	case contains(audioExtensions, ext):
		return SourceKindAudio
	}
	return SourceKindUnsupported
}

// SupportedExtensions lists every extension the extractor understands.
func SupportedExtensions() []string {
	out := make([]string, 0, len(textExtensions)+len(pdfExtensions)+len(audioExtensions))
	out = append(out, textExtensions...)
	out = append(out, pdfExtensions...)
	return append(out, audioExtensions...)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// CorpusState is the authoritative chunk -> file -> vector mapping.
// Chunks, Embeddings and ChunkFiles are parallel slices.
type CorpusState struct {
	Chunks     []string
	Embeddings [][]float32
	ChunkFiles []string
	Files      []string
	FileHashes map[string]string
	Model      string
}

// NewCorpusState returns an empty state for the given embedding model
func NewCorpusState(model string) *CorpusState {
	return &CorpusState{
		FileHashes: make(map[string]string),
		Model:      model,
	}
}

// Len returns the number of chunks
func (s *CorpusState) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Chunks)
}

// Dimension returns the embedding width, or 0 for an empty state
func (s *CorpusState) Dimension() int {
	if s == nil || len(s.Embeddings) == 0 {
		return 0
	}
	return len(s.Embeddings[0])
}

// HasFile reports whether name is in the embedded file list
func (s *CorpusState) HasFile(name string) bool {
	if s == nil {
		return false
	}
	return contains(s.Files, name)
}

// Validate checks the positional alignment invariant
func (s *CorpusState) Validate() error {
	if s == nil {
		return nil
	}
	if len(s.Chunks) != len(s.Embeddings) || len(s.Chunks) != len(s.ChunkFiles) {
		return NewDomainErrorWithCause(ErrCorpusMisaligned.Code, ErrCorpusMisaligned.Message,
			fmt.Errorf("chunks=%d embeddings=%d chunk_files=%d", len(s.Chunks), len(s.Embeddings), len(s.ChunkFiles)))
	}
	dim := s.Dimension()
	for i, v := range s.Embeddings {
		if len(v) != dim {
			return NewDomainErrorWithCause(ErrCorpusMisaligned.Code, ErrCorpusMisaligned.Message,
				fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), dim))
		}
	}
	return nil
}

// Clone deep-copies the state so the copy can be mutated freely
func (s *CorpusState) Clone() *CorpusState {
	if s == nil {
		return nil
	}
	out := &CorpusState{
		Chunks:     append([]string(nil), s.Chunks...),
		ChunkFiles: append([]string(nil), s.ChunkFiles...),
		Files:      append([]string(nil), s.Files...),
		FileHashes: make(map[string]string, len(s.FileHashes)),
		Model:      s.Model,
	}
	out.Embeddings = make([][]float32, len(s.Embeddings))
	for i, v := range s.Embeddings {
		out.Embeddings[i] = append([]float32(nil), v...)
	}
	for k, v := range s.FileHashes {
		out.FileHashes[k] = v
	}
	return out
}

// Append adds chunks owned by file, with their vectors, keeping alignment.
func (s *CorpusState) Append(file string, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return NewDomainErrorWithCause(ErrCorpusMisaligned.Code, ErrCorpusMisaligned.Message,
			fmt.Errorf("appending %d chunks with %d vectors", len(chunks), len(vectors)))
	}
	for i := range chunks {
		s.Chunks = append(s.Chunks, chunks[i])
		s.Embeddings = append(s.Embeddings, vectors[i])
		s.ChunkFiles = append(s.ChunkFiles, file)
	}
	return nil
}

// RemoveFile drops every chunk owned by file and the file from the list.
func (s *CorpusState) RemoveFile(file string) {
	keep := 0
	for i := range s.Chunks {
		if s.ChunkFiles[i] == file {
			continue
		}
		s.Chunks[keep] = s.Chunks[i]
		s.Embeddings[keep] = s.Embeddings[i]
		s.ChunkFiles[keep] = s.ChunkFiles[i]
		keep++
	}
	s.Chunks = s.Chunks[:keep]
	s.Embeddings = s.Embeddings[:keep]
	s.ChunkFiles = s.ChunkFiles[:keep]

	files := s.Files[:0]
	for _, f := range s.Files {
		if f != file {
			files = append(files, f)
		}
	}
	s.Files = files
	delete(s.FileHashes, file)
}

// ChunkCounts returns the number of chunks contributed by each source name
func (s *CorpusState) ChunkCounts() map[string]int {
	counts := make(map[string]int)
	if s == nil {
		return counts
	}
	for _, f := range s.ChunkFiles {
		counts[f]++
	}
	return counts
}

// SearchHit is a retrieved chunk with its L2 distance to the query
type SearchHit struct {
	Position int     `json:"position"`
	Distance float32 `json:"distance"`
	Text     string  `json:"text"`
	File     string  `json:"file"`
}

// ManifestEntry is one line of the embedded-files manifest. Hash is empty
// unless content staleness is enabled.
type ManifestEntry struct {
	Name string
	Hash string
}

// ManifestFromState lists the state's files in order with their hashes
func ManifestFromState(s *CorpusState) []ManifestEntry {
	if s == nil {
		return nil
	}
	out := make([]ManifestEntry, len(s.Files))
	for i, f := range s.Files {
		out[i] = ManifestEntry{Name: f, Hash: s.FileHashes[f]}
	}
	return out
}
