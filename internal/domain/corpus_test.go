package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindForPath(t *testing.T) {
	tests := []struct {
		path     string
		expected SourceKind
	}{
		{"notes.txt", SourceKindText},
		{"NOTES.TXT", SourceKindText},
		{"cv.pdf", SourceKindPDF},
		{"cv.PDF", SourceKindPDF},
		{"talk.mp3", SourceKindAudio},
		{"talk.wav", SourceKindAudio},
		{"talk.ogg", SourceKindAudio},
		{"talk.M4A", SourceKindAudio},
		{"me.jpg", SourceKindUnsupported},
		{"README", SourceKindUnsupported},
		{"corpus_state.gob", SourceKindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindForPath(tt.path))
		})
	}
}

func TestCorpusState_AppendKeepsAlignment(t *testing.T) {
	s := NewCorpusState("model")

	err := s.Append("a.txt", []string{"one", "two"}, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	err = s.Append(ManualQAFile, []string{"Q: x\nA: y"}, [][]float32{{1, 1}})
	require.NoError(t, err)

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 2, s.Dimension())
	assert.Equal(t, []string{"a.txt", "a.txt", ManualQAFile}, s.ChunkFiles)
	assert.NoError(t, s.Validate())
}

func TestCorpusState_AppendMismatch(t *testing.T) {
	s := NewCorpusState("model")

	err := s.Append("a.txt", []string{"one", "two"}, [][]float32{{1, 0}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorpusMisaligned))
	assert.Equal(t, 0, s.Len())
}

func TestCorpusState_Validate(t *testing.T) {
	tests := []struct {
		name    string
		state   *CorpusState
		wantErr bool
	}{
		{"nil state", nil, false},
		{"empty state", NewCorpusState("m"), false},
		{
			name: "aligned",
			state: &CorpusState{
				Chunks:     []string{"a"},
				Embeddings: [][]float32{{1}},
				ChunkFiles: []string{"f"},
			},
		},
		{
			name: "missing chunk file",
			state: &CorpusState{
				Chunks:     []string{"a"},
				Embeddings: [][]float32{{1}},
			},
			wantErr: true,
		},
		{
			name: "ragged embeddings",
			state: &CorpusState{
				Chunks:     []string{"a", "b"},
				Embeddings: [][]float32{{1, 2}, {1}},
				ChunkFiles: []string{"f", "f"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCorpusMisaligned)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCorpusState_CloneIsDeep(t *testing.T) {
	s := NewCorpusState("m")
	require.NoError(t, s.Append("a.txt", []string{"one"}, [][]float32{{1, 2}}))
	s.Files = []string{"a.txt"}
	s.FileHashes["a.txt"] = "h1"

	c := s.Clone()
	c.Embeddings[0][0] = 99
	c.Chunks[0] = "changed"
	c.Files = append(c.Files, "b.txt")
	c.FileHashes["a.txt"] = "h2"

	assert.Equal(t, float32(1), s.Embeddings[0][0])
	assert.Equal(t, "one", s.Chunks[0])
	assert.Equal(t, []string{"a.txt"}, s.Files)
	assert.Equal(t, "h1", s.FileHashes["a.txt"])
}

func TestCorpusState_RemoveFile(t *testing.T) {
	s := NewCorpusState("m")
	require.NoError(t, s.Append("a.txt", []string{"a1", "a2"}, [][]float32{{1}, {2}}))
	require.NoError(t, s.Append("b.txt", []string{"b1"}, [][]float32{{3}}))
	require.NoError(t, s.Append("a.txt", []string{"a3"}, [][]float32{{4}}))
	s.Files = []string{"a.txt", "b.txt"}
	s.FileHashes["a.txt"] = "h"

	s.RemoveFile("a.txt")

	assert.Equal(t, []string{"b1"}, s.Chunks)
	assert.Equal(t, [][]float32{{3}}, s.Embeddings)
	assert.Equal(t, []string{"b.txt"}, s.ChunkFiles)
	assert.Equal(t, []string{"b.txt"}, s.Files)
	assert.NotContains(t, s.FileHashes, "a.txt")
	assert.NoError(t, s.Validate())
}

func TestCorpusState_ChunkCounts(t *testing.T) {
	s := NewCorpusState("m")
	require.NoError(t, s.Append("a.txt", []string{"a1", "a2"}, [][]float32{{1}, {2}}))
	require.NoError(t, s.Append(ManualQAFile, []string{"q"}, [][]float32{{3}}))

	counts := s.ChunkCounts()

	assert.Equal(t, 2, counts["a.txt"])
	assert.Equal(t, 1, counts[ManualQAFile])
}

func TestDomainError_IsMatchesWrappedSentinel(t *testing.T) {
	cause := errors.New("disk full")
	err := WithCause(ErrPersistenceFailed, cause)

	assert.True(t, errors.Is(err, ErrPersistenceFailed))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrUpstreamFailed))
	assert.Equal(t, ErrCodePersistenceFailed, CodeOf(err))
	assert.Contains(t, err.Error(), "disk full")
}
