package embed

import (
	"context"
	"fmt"
	"log/slog"

	"tessera/backend/internal/enrich"
)

// batchSize caps texts per embedding request; providers impose
// request-size limits.
const batchSize = 20

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Record is the persisted chunk shape. ChunkIndex is 0-based, contiguous
// and unique within a document; it determines stable ordering.
type Record struct {
	DocumentID   string
	ChunkIndex   int
	Content      string
	OriginalText string
	Tables       []string
	Images       []string
	Types        []string
	Page         int
	CharCount    int
	Vector       []float32
}

type Store interface {
	UpsertChunk(ctx context.Context, rec Record) error
}

// Stage embeds enriched chunks in fixed-size batches and persists each as
// an independent record. A failure partway through leaves prior chunks
// durably stored; nothing is rolled back.
type Stage struct {
	embedder Embedder
	store    Store
}

func NewStage(embedder Embedder, store Store) *Stage {
	return &Stage{embedder: embedder, store: store}
}

// Process returns the number of chunks stored. On error the count reflects
// what was durably written before the failure.
func (s *Stage) Process(ctx context.Context, documentID string, chunks []enrich.ProcessedChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	// Batches are issued sequentially to respect provider rate limits.
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch, err := s.embedder.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return 0, fmt.Errorf("embed batch %d: %w", start/batchSize+1, err)
		}
		if len(batch) != end-start {
			return 0, fmt.Errorf("embed batch %d: got %d vectors for %d texts", start/batchSize+1, len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}

	stored := 0
	for i, c := range chunks {
		rec := Record{
			DocumentID:   documentID,
			ChunkIndex:   i,
			Content:      c.Content,
			OriginalText: c.Original.Text,
			Tables:       c.Original.Tables,
			Images:       c.Original.Images,
			Types:        c.Original.Types,
			Page:         c.Page,
			CharCount:    c.CharCount,
			Vector:       vectors[i],
		}
		if err := s.store.UpsertChunk(ctx, rec); err != nil {
			return stored, fmt.Errorf("store chunk %d: %w", i, err)
		}
		stored++
	}

	slog.InfoContext(ctx, "chunks stored", "document_id", documentID, "count", stored)
	return stored, nil
}
