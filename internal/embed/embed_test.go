package embed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/backend/internal/chunk"
	"tessera/backend/internal/enrich"
)

type fakeEmbedder struct {
	batches [][]string
	err     error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

type fakeStore struct {
	records []Record
	failAt  int // 0 = never fail
}

func (f *fakeStore) UpsertChunk(_ context.Context, rec Record) error {
	if f.failAt > 0 && rec.ChunkIndex == f.failAt {
		return errors.New("connection reset")
	}
	f.records = append(f.records, rec)
	return nil
}

func processed(n int) []enrich.ProcessedChunk {
	chunks := make([]enrich.ProcessedChunk, n)
	for i := range chunks {
		text := fmt.Sprintf("chunk %d content", i)
		chunks[i] = enrich.ProcessedChunk{
			Content:   text,
			Original:  chunk.Content{Text: text, Types: []string{"text"}},
			Page:      i + 1,
			CharCount: len(text),
		}
	}
	return chunks
}

func TestStageProcess(t *testing.T) {
	t.Run("Batches Of Twenty", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		store := &fakeStore{}
		stage := NewStage(embedder, store)

		stored, err := stage.Process(context.Background(), "doc-1", processed(45))
		require.NoError(t, err)

		assert.Equal(t, 45, stored)
		require.Len(t, embedder.batches, 3)
		assert.Len(t, embedder.batches[0], 20)
		assert.Len(t, embedder.batches[1], 20)
		assert.Len(t, embedder.batches[2], 5)
	})

	t.Run("Chunk Index Is Contiguous", func(t *testing.T) {
		store := &fakeStore{}
		stage := NewStage(&fakeEmbedder{}, store)

		_, err := stage.Process(context.Background(), "doc-1", processed(3))
		require.NoError(t, err)

		for i, rec := range store.records {
			assert.Equal(t, i, rec.ChunkIndex)
			assert.Equal(t, "doc-1", rec.DocumentID)
		}
	})

	t.Run("Partial Persistence On Store Failure", func(t *testing.T) {
		store := &fakeStore{failAt: 2}
		stage := NewStage(&fakeEmbedder{}, store)

		stored, err := stage.Process(context.Background(), "doc-1", processed(4))
		assert.Error(t, err)
		assert.Equal(t, 2, stored)
		assert.Len(t, store.records, 2)
	})

	t.Run("Embedding Failure Stores Nothing", func(t *testing.T) {
		store := &fakeStore{}
		stage := NewStage(&fakeEmbedder{err: errors.New("quota")}, store)

		stored, err := stage.Process(context.Background(), "doc-1", processed(2))
		assert.Error(t, err)
		assert.Zero(t, stored)
		assert.Empty(t, store.records)
	})

	t.Run("Empty Input", func(t *testing.T) {
		stage := NewStage(&fakeEmbedder{}, &fakeStore{})
		stored, err := stage.Process(context.Background(), "doc-1", nil)
		require.NoError(t, err)
		assert.Zero(t, stored)
	})
}
