package service

import (
	"context"
	"io"
	"sync"

	"github.com/cloo-solutions/askme/internal/domain"
)

// Session holds the current corpus for a long-running process. Mutations
// are serialized under the write lock; readers work on a snapshot.
type Session struct {
	mu       sync.RWMutex
	corpus   *Corpus
	svc      *CorpusService
	restored bool
}

// NewSession starts from initial, normally the result of CorpusService.Load.
// With a nil initial corpus the first Ingest restores persisted state itself.
func NewSession(svc *CorpusService, initial *Corpus) *Session {
	restored := initial != nil
	if !restored {
		initial = svc.Empty()
	}
	return &Session{corpus: initial, svc: svc, restored: restored}
}

// Corpus returns the current snapshot
func (s *Session) Corpus() *Corpus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.corpus
}

// Ingest merges new files from the corpus directory onto the current
// snapshot and publishes the result. Once the session holds restored state,
// persisted state is not reread, so a store that fails to load cannot drop
// chunks already in memory.
func (s *Session) Ingest(ctx context.Context) (*Corpus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *Corpus
	var err error
	if s.restored {
		next, err = s.svc.MergeDirectory(ctx, s.corpus)
	} else {
		next, err = s.svc.IngestDirectory(ctx)
	}
	if err != nil {
		return nil, err
	}
	s.corpus = next
	s.restored = true
	return next, nil
}

// Rescan is Ingest for the background worker
func (s *Session) Rescan(ctx context.Context) error {
	_, err := s.Ingest(ctx)
	return err
}

// AddFile appends a file that is already inside the corpus directory
func (s *Session) AddFile(ctx context.Context, path string) (*Corpus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.svc.AppendFile(ctx, s.corpus, path)
	if err != nil {
		return nil, err
	}
	s.corpus = next
	s.restored = true
	return next, nil
}

// Upload stores r under name in the corpus directory and appends it. The
// file stays on disk when extraction fails so a later scan can retry it.
func (s *Session) Upload(ctx context.Context, name string, r io.Reader) (*Corpus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.svc.SaveUpload(ctx, s.corpus, name, r)
	if err != nil {
		return nil, err
	}
	next, err := s.svc.AppendFile(ctx, s.corpus, path)
	if err != nil {
		return nil, err
	}
	s.corpus = next
	s.restored = true
	return next, nil
}

// AddManualEntry appends a question/answer pair
func (s *Session) AddManualEntry(ctx context.Context, question, answer string) (*Corpus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.svc.AppendManualEntry(ctx, s.corpus, question, answer)
	if err != nil {
		return nil, err
	}
	s.corpus = next
	s.restored = true
	return next, nil
}

func (s *Session) Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	return s.svc.Search(ctx, s.Corpus(), query, k)
}

func (s *Session) Retrieve(ctx context.Context, query string, k int) (string, error) {
	return s.svc.Retrieve(ctx, s.Corpus(), query, k)
}
