package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloo-solutions/askme/internal/domain"
	"github.com/cloo-solutions/askme/internal/ingest"
	"github.com/cloo-solutions/askme/internal/telemetry"
	"github.com/cloo-solutions/askme/internal/vectorindex"
)

// Embedder turns texts into vectors of one fixed width, preserving order
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// ChunkExtractor produces chunks for a source file, strictly or leniently
type ChunkExtractor interface {
	Extract(ctx context.Context, path string) ([]string, error)
	Scan(ctx context.Context, path string) []string
}

// CorpusRepository persists corpus state, the index cache and the manifest
type CorpusRepository interface {
	LoadState(ctx context.Context) (*domain.CorpusState, error)
	SaveState(ctx context.Context, state *domain.CorpusState) error
	LoadIndex(ctx context.Context) (*vectorindex.Flat, error)
	SaveIndex(ctx context.Context, idx *vectorindex.Flat) error
	LoadManifest(ctx context.Context) ([]domain.ManifestEntry, error)
	SaveManifest(ctx context.Context, entries []domain.ManifestEntry) error
}

// Corpus is an immutable snapshot: the state and the index built from it.
// Operations return a new Corpus instead of mutating their input.
type Corpus struct {
	State *domain.CorpusState
	Index *vectorindex.Flat
}

// Len returns the number of chunks in the corpus
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return c.State.Len()
}

// FileSummary describes one embedded source
type FileSummary struct {
	Name   string `json:"name"`
	Chunks int    `json:"chunks"`
}

// Files lists embedded files in manifest order, followed by the manual
// Q&A pseudo-file when it has chunks.
func (c *Corpus) Files() []FileSummary {
	if c == nil || c.State == nil {
		return []FileSummary{}
	}
	counts := c.State.ChunkCounts()
	out := make([]FileSummary, 0, len(c.State.Files)+1)
	for _, f := range c.State.Files {
		out = append(out, FileSummary{Name: f, Chunks: counts[f]})
	}
	if n := counts[domain.ManualQAFile]; n > 0 {
		out = append(out, FileSummary{Name: domain.ManualQAFile, Chunks: n})
	}
	return out
}

// CorpusConfig controls where sources live and how updates are merged
type CorpusConfig struct {
	Dir            string
	StalenessKey   string
	AppendStrategy string
}

const (
	stalenessContent = "content"
	appendDelta      = "delta"
)

// CorpusService owns ingestion, incremental merging and retrieval
type CorpusService struct {
	cfg       CorpusConfig
	extractor ChunkExtractor
	embedder  Embedder
	repo      CorpusRepository
}

func NewCorpusService(cfg CorpusConfig, extractor ChunkExtractor, embedder Embedder, repo CorpusRepository) *CorpusService {
	return &CorpusService{
		cfg:       cfg,
		extractor: extractor,
		embedder:  embedder,
		repo:      repo,
	}
}

// Dir returns the corpus source directory
func (s *CorpusService) Dir() string {
	return s.cfg.Dir
}

// Empty returns a corpus with no chunks for the configured model
func (s *CorpusService) Empty() *Corpus {
	idx, _ := vectorindex.Build(nil)
	return &Corpus{State: domain.NewCorpusState(s.embedder.ModelName()), Index: idx}
}

// Load restores the persisted corpus without scanning the directory. Any
// load failure yields an empty corpus.
func (s *CorpusService) Load(ctx context.Context) *Corpus {
	state, ok := s.loadPersisted(ctx)
	if !ok {
		return s.Empty()
	}
	return &Corpus{State: state, Index: s.indexFor(ctx, state, true)}
}

// loadPersisted returns the persisted state with the manifest applied. ok is
// false when there was nothing usable to load.
func (s *CorpusService) loadPersisted(ctx context.Context) (*domain.CorpusState, bool) {
	state, err := s.repo.LoadState(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrStateMissing) {
			log.Printf("corpus: ignoring unreadable persisted state: %v", err)
		}
		return nil, false
	}

	manifest, err := s.repo.LoadManifest(ctx)
	switch {
	case err == nil:
		state.Files = make([]string, 0, len(manifest))
		for _, e := range manifest {
			state.Files = append(state.Files, e.Name)
			if e.Hash != "" {
				state.FileHashes[e.Name] = e.Hash
			}
		}
	case errors.Is(err, domain.ErrStateMissing):
	default:
		log.Printf("corpus: ignoring unreadable manifest: %v", err)
	}
	return state, true
}

// indexFor reuses the persisted index when allowed and consistent with
// state, and rebuilds it otherwise.
func (s *CorpusService) indexFor(ctx context.Context, state *domain.CorpusState, allowCache bool) *vectorindex.Flat {
	if allowCache {
		cached, err := s.repo.LoadIndex(ctx)
		if err == nil && cached.Len() == state.Len() && cached.Dimension() == state.Dimension() {
			return cached
		}
	}
	idx, err := vectorindex.Build(state.Embeddings)
	if err != nil {
		// Validate already guarantees a rectangular matrix.
		log.Printf("corpus: failed to build index: %v", err)
		idx, _ = vectorindex.Build(nil)
	}
	return idx
}

type sourceFile struct {
	name string
	path string
	hash string
}

// IngestDirectory merges files found in the corpus directory into the
// persisted corpus. Previously embedded files keep their chunks and vectors;
// only new files are extracted and embedded. Unreadable persisted state is
// replaced by an empty corpus, so this is meant for a fresh process.
func (s *CorpusService) IngestDirectory(ctx context.Context) (*Corpus, error) {
	state, loaded := s.loadPersisted(ctx)
	if !loaded {
		state = domain.NewCorpusState(s.embedder.ModelName())
	}
	return s.mergeDirectory(ctx, "CorpusService.IngestDirectory", state, nil, !loaded)
}

// MergeDirectory merges new files from the corpus directory onto c without
// reading persisted state, so a failing store cannot shrink a live corpus.
// c is left untouched.
func (s *CorpusService) MergeDirectory(ctx context.Context, c *Corpus) (*Corpus, error) {
	if c == nil || c.State == nil {
		c = s.Empty()
	}
	return s.mergeDirectory(ctx, "CorpusService.MergeDirectory", c.State.Clone(), c.Index, false)
}

// mergeDirectory adds new and changed files to state, which it owns. index
// is the index already built for state, if any.
func (s *CorpusService) mergeDirectory(ctx context.Context, op string, state *domain.CorpusState, index *vectorindex.Flat, dirty bool) (*Corpus, error) {
	ctx, span := telemetry.StartSpan(ctx, op, telemetry.SpanAttributes{
		Operation: "ingest",
	})
	defer span.End()

	present, err := s.listSources()
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	model := s.embedder.ModelName()
	if state.Model != model {
		log.Printf("corpus: embedding model changed from %q to %q, re-embedding %d chunks", state.Model, model, state.Len())
		if err := s.reembedAll(ctx, state); err != nil {
			span.SetError(err)
			return nil, err
		}
		dirty = true
	}

	var newFiles []sourceFile
	for _, f := range present {
		if state.HasFile(f.name) {
			if s.cfg.StalenessKey != stalenessContent || state.FileHashes[f.name] == f.hash {
				continue
			}
			log.Printf("corpus: %s changed on disk, re-embedding", f.name)
			state.RemoveFile(f.name)
			dirty = true
		}
		newFiles = append(newFiles, f)
	}

	var newChunks, newOwners []string
	added := make([]sourceFile, 0, len(newFiles))
	for _, f := range newFiles {
		chunks := s.extractor.Scan(ctx, f.path)
		if len(chunks) == 0 {
			continue
		}
		for _, c := range chunks {
			newChunks = append(newChunks, c)
			newOwners = append(newOwners, f.name)
		}
		added = append(added, f)
	}

	if len(newChunks) > 0 {
		vectors, err := s.embedder.EmbedBatch(ctx, newChunks)
		if err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("failed to embed new files: %w", err)
		}
		if len(vectors) != len(newChunks) {
			err := fmt.Errorf("failed to embed new files: got %d vectors for %d chunks", len(vectors), len(newChunks))
			span.SetError(err)
			return nil, err
		}
		for i := range newChunks {
			if err := state.Append(newOwners[i], newChunks[i:i+1], vectors[i:i+1]); err != nil {
				return nil, err
			}
		}
		dirty = true
	}
	for _, f := range added {
		state.Files = append(state.Files, f.name)
		if f.hash != "" {
			state.FileHashes[f.name] = f.hash
		}
	}
	if err := state.Validate(); err != nil {
		span.SetError(err)
		return nil, err
	}

	var idx *vectorindex.Flat
	switch {
	case dirty:
		idx = s.indexFor(ctx, state, false)
	case index != nil:
		idx = index
	default:
		idx = s.indexFor(ctx, state, true)
	}

	corpus := &Corpus{State: state, Index: idx}
	if dirty {
		if err := s.persist(ctx, corpus); err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	span.SetChunks(len(newChunks))
	log.Printf("corpus: ingested %d new files (%d chunks), corpus has %d chunks", len(added), len(newChunks), state.Len())
	return corpus, nil
}

// AppendFile extracts a single file strictly and adds it to the corpus.
func (s *CorpusService) AppendFile(ctx context.Context, c *Corpus, path string) (*Corpus, error) {
	name := filepath.Base(path)
	ctx, span := telemetry.StartSpan(ctx, "CorpusService.AppendFile", telemetry.SpanAttributes{
		File:      name,
		Operation: "append",
	})
	defer span.End()

	if ingest.IsReserved(name) {
		return nil, domain.ErrReservedFileName
	}
	if c.State.HasFile(name) {
		return nil, domain.ErrFileAlreadyEmbedded
	}

	chunks, err := s.extractor.Extract(ctx, path)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, &ingest.ExtractionError{Path: path, Err: domain.WithCause(domain.ErrExtractionFailed, errors.New("no text found"))}
	}

	entry := &domain.ManifestEntry{Name: name}
	if s.cfg.StalenessKey == stalenessContent {
		if entry.Hash, err = hashFile(path); err != nil {
			return nil, &ingest.ExtractionError{Path: path, Err: domain.WithCause(domain.ErrExtractionFailed, err)}
		}
	}

	next, err := s.appendChunks(ctx, c, name, chunks, entry)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetChunks(len(chunks))
	log.Printf("corpus: appended %s (%d chunks)", name, len(chunks))
	return next, nil
}

// AppendManualEntry adds a hand-written question and answer as one chunk.
func (s *CorpusService) AppendManualEntry(ctx context.Context, c *Corpus, question, answer string) (*Corpus, error) {
	ctx, span := telemetry.StartSpan(ctx, "CorpusService.AppendManualEntry", telemetry.SpanAttributes{
		File:      domain.ManualQAFile,
		Operation: "append",
	})
	defer span.End()

	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return nil, domain.ErrMissingRequiredField
	}

	chunk := fmt.Sprintf("Q: %s\nA: %s", question, answer)
	next, err := s.appendChunks(ctx, c, domain.ManualQAFile, []string{chunk}, nil)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return next, nil
}

// appendChunks adds chunks owned by owner to a copy of c. With the full
// strategy every chunk is re-embedded, otherwise only the new ones are.
func (s *CorpusService) appendChunks(ctx context.Context, c *Corpus, owner string, chunks []string, file *domain.ManifestEntry) (*Corpus, error) {
	next := c.State.Clone()
	model := s.embedder.ModelName()

	if s.cfg.AppendStrategy == appendDelta && next.Model == model {
		vectors, err := s.embedder.EmbedBatch(ctx, chunks)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}
		if next.Len() > 0 && len(vectors) > 0 && len(vectors[0]) != next.Dimension() {
			return nil, fmt.Errorf("failed to embed chunks: dimension %d does not match corpus dimension %d", len(vectors[0]), next.Dimension())
		}
		if err := next.Append(owner, chunks, vectors); err != nil {
			return nil, err
		}
	} else {
		for _, ch := range chunks {
			next.Chunks = append(next.Chunks, ch)
			next.ChunkFiles = append(next.ChunkFiles, owner)
		}
		if err := s.reembedAll(ctx, next); err != nil {
			return nil, err
		}
	}

	if file != nil {
		next.Files = append(next.Files, file.Name)
		if file.Hash != "" {
			next.FileHashes[file.Name] = file.Hash
		}
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	corpus := &Corpus{State: next, Index: s.indexFor(ctx, next, false)}
	if err := s.persist(ctx, corpus); err != nil {
		return nil, err
	}
	return corpus, nil
}

// reembedAll recomputes every vector of state with the current model.
func (s *CorpusService) reembedAll(ctx context.Context, state *domain.CorpusState) error {
	vectors, err := s.embedder.EmbedBatch(ctx, state.Chunks)
	if err != nil {
		return fmt.Errorf("failed to re-embed corpus: %w", err)
	}
	if len(vectors) != len(state.Chunks) {
		return fmt.Errorf("failed to re-embed corpus: got %d vectors for %d chunks", len(vectors), len(state.Chunks))
	}
	state.Embeddings = vectors
	state.Model = s.embedder.ModelName()
	return nil
}

func (s *CorpusService) persist(ctx context.Context, c *Corpus) error {
	if err := s.repo.SaveState(ctx, c.State); err != nil {
		return err
	}
	if err := s.repo.SaveIndex(ctx, c.Index); err != nil {
		return err
	}
	entries := domain.ManifestFromState(c.State)
	if s.cfg.StalenessKey != stalenessContent {
		for i := range entries {
			entries[i].Hash = ""
		}
	}
	return s.repo.SaveManifest(ctx, entries)
}

// SaveUpload writes an uploaded file into the corpus directory and returns
// its path. The name must be a plain, supported, not yet embedded file name.
func (s *CorpusService) SaveUpload(ctx context.Context, c *Corpus, name string, r io.Reader) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", domain.ErrInvalidFileName
	}
	if ingest.IsReserved(name) {
		return "", domain.ErrReservedFileName
	}
	if domain.KindForPath(name) == domain.SourceKindUnsupported {
		return "", domain.ErrUnsupportedFileType
	}
	if c.State.HasFile(name) {
		return "", domain.ErrFileAlreadyEmbedded
	}

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create corpus directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.cfg.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	path := filepath.Join(s.cfg.Dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return path, nil
}

// Search embeds query and returns up to k nearest chunks
func (s *CorpusService) Search(ctx context.Context, c *Corpus, query string, k int) ([]domain.SearchHit, error) {
	ctx, span := telemetry.StartSpan(ctx, "CorpusService.Search", telemetry.SpanAttributes{
		Operation: "search",
	})
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrMissingRequiredField
	}
	if c.Len() == 0 || k <= 0 {
		return []domain.SearchHit{}, nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := c.Index.Search(vectors[0], k)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	out := make([]domain.SearchHit, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= c.Len() {
			continue
		}
		out = append(out, domain.SearchHit{
			Position: h.Position,
			Distance: h.Distance,
			Text:     c.State.Chunks[h.Position],
			File:     c.State.ChunkFiles[h.Position],
		})
	}
	return out, nil
}

// Retrieve returns the texts of the k nearest chunks joined by newlines.
// An empty corpus yields "".
func (s *CorpusService) Retrieve(ctx context.Context, c *Corpus, query string, k int) (string, error) {
	hits, err := s.Search(ctx, c, query, k)
	if err != nil {
		return "", err
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return strings.Join(texts, "\n"), nil
}

// listSources returns supported, non-reserved regular files in the corpus
// directory sorted by name. A missing directory has no sources.
func (s *CorpusService) listSources() ([]sourceFile, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("corpus: directory %s does not exist yet", s.cfg.Dir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list corpus directory: %w", err)
	}

	var out []sourceFile
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || ingest.IsReserved(name) {
			continue
		}
		if domain.KindForPath(name) == domain.SourceKindUnsupported {
			continue
		}
		f := sourceFile{name: name, path: filepath.Join(s.cfg.Dir, name)}
		if s.cfg.StalenessKey == stalenessContent {
			if f.hash, err = hashFile(f.path); err != nil {
				log.Printf("corpus: skipping unreadable %s: %v", name, err)
				continue
			}
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
