package repository

import (
	"bufio"
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/askme/internal/domain"
	"github.com/cloo-solutions/askme/internal/ingest"
	"github.com/cloo-solutions/askme/internal/storage"
	"github.com/cloo-solutions/askme/internal/vectorindex"
)

// Blob keys of the persisted corpus.
const (
	StateKey    = "corpus_state.gob"
	IndexKey    = "corpus.index"
	ManifestKey = ingest.ManifestFile
	PersonaKey  = ingest.PersonaCacheFile
)

const stateVersion = 1

// stateRecord is the on-disk shape of a CorpusState. Chunks, vectors and
// chunk owners travel in one record so they cannot drift apart.
type stateRecord struct {
	Version    int
	Model      string
	Chunks     []string
	Embeddings [][]float32
	ChunkFiles []string
	Files      []string
	FileHashes map[string]string
}

type CorpusRepository struct {
	store storage.BlobStore
}

func NewCorpusRepository(store storage.BlobStore) *CorpusRepository {
	return &CorpusRepository{store: store}
}

func (r *CorpusRepository) LoadState(ctx context.Context) (*domain.CorpusState, error) {
	data, err := r.get(ctx, StateKey)
	if err != nil {
		return nil, err
	}

	var rec stateRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode corpus state: %w", err)
	}
	if rec.Version != stateVersion {
		return nil, fmt.Errorf("unsupported corpus state version %d", rec.Version)
	}

	state := &domain.CorpusState{
		Chunks:     rec.Chunks,
		Embeddings: rec.Embeddings,
		ChunkFiles: rec.ChunkFiles,
		Files:      rec.Files,
		FileHashes: rec.FileHashes,
		Model:      rec.Model,
	}
	if state.FileHashes == nil {
		state.FileHashes = make(map[string]string)
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}
	return state, nil
}

func (r *CorpusRepository) SaveState(ctx context.Context, state *domain.CorpusState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	rec := stateRecord{
		Version:    stateVersion,
		Model:      state.Model,
		Chunks:     state.Chunks,
		Embeddings: state.Embeddings,
		ChunkFiles: state.ChunkFiles,
		Files:      state.Files,
		FileHashes: state.FileHashes,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("failed to encode corpus state: %w", err)
	}
	return r.put(ctx, StateKey, buf.Bytes())
}

func (r *CorpusRepository) LoadIndex(ctx context.Context) (*vectorindex.Flat, error) {
	data, err := r.get(ctx, IndexKey)
	if err != nil {
		return nil, err
	}
	var idx vectorindex.Flat
	if err := idx.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}
	return &idx, nil
}

func (r *CorpusRepository) SaveIndex(ctx context.Context, idx *vectorindex.Flat) error {
	data, err := idx.MarshalBinary()
	if err != nil {
		return err
	}
	return r.put(ctx, IndexKey, data)
}

// LoadManifest parses one entry per line, either "name" or "name<TAB>sha256".
func (r *CorpusRepository) LoadManifest(ctx context.Context) ([]domain.ManifestEntry, error) {
	data, err := r.get(ctx, ManifestKey)
	if err != nil {
		return nil, err
	}

	var entries []domain.ManifestEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, hash, _ := strings.Cut(line, "\t")
		entries = append(entries, domain.ManifestEntry{Name: name, Hash: hash})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return entries, nil
}

func (r *CorpusRepository) SaveManifest(ctx context.Context, entries []domain.ManifestEntry) error {
	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(e.Name)
		if e.Hash != "" {
			buf.WriteByte('\t')
			buf.WriteString(e.Hash)
		}
		buf.WriteByte('\n')
	}
	return r.put(ctx, ManifestKey, buf.Bytes())
}

// LoadPersona returns the cached persona text, or ErrStateMissing.
func (r *CorpusRepository) LoadPersona(ctx context.Context) (string, error) {
	data, err := r.get(ctx, PersonaKey)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (r *CorpusRepository) SavePersona(ctx context.Context, persona string) error {
	return r.put(ctx, PersonaKey, []byte(persona))
}

func (r *CorpusRepository) get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrStateMissing
		}
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return data, nil
}

func (r *CorpusRepository) put(ctx context.Context, key string, data []byte) error {
	if err := r.store.Put(ctx, key, data); err != nil {
		return domain.WithCause(domain.ErrPersistenceFailed, fmt.Errorf("failed to save %s: %w", key, err))
	}
	return nil
}
