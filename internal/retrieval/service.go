package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Strategy names selectable per project.
const (
	StrategyBasic            = "basic"
	StrategyHybrid           = "hybrid"
	StrategyMultiQueryVector = "multi-query-vector"
	StrategyMultiQueryHybrid = "multi-query-hybrid"
)

var ErrUnknownStrategy = errors.New("unknown retrieval strategy")

// Chunk is a retrieved unit with its strategy-assigned score. Ephemeral:
// produced and consumed within one query.
type Chunk struct {
	ID           string
	DocumentID   string
	Content      string
	OriginalText string
	Tables       []string
	Images       []string
	Types        []string
	Page         int
	Score        float32
}

// Params is the per-project retrieval configuration. Weights need not sum
// to one but must both be non-negative.
type Params struct {
	Strategy            string
	ChunksPerSearch     int
	FinalContextSize    int
	SimilarityThreshold float64
	VectorWeight        float64
	KeywordWeight       float64
	NumberOfQueries     int
}

type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchBackend runs the two primitive searches over the chunk store,
// scoped to a document id set.
type SearchBackend interface {
	VectorSearch(ctx context.Context, vector []float32, documentIDs []string, threshold float64, limit int) ([]Chunk, error)
	KeywordSearch(ctx context.Context, query string, documentIDs []string, limit int) ([]Chunk, error)
}

// Expander produces query variants for multi-query strategies. The
// returned slice always starts with the original query and is never empty.
type Expander interface {
	Expand(ctx context.Context, query string, total int) []string
}

// Service executes one of the retrieval strategies by composing the search
// primitives with rank fusion. Stateless; concurrent queries need no
// coordination.
type Service struct {
	embedder Embedder
	backend  SearchBackend
	expander Expander
}

func NewService(embedder Embedder, backend SearchBackend, expander Expander) *Service {
	return &Service{embedder: embedder, backend: backend, expander: expander}
}

// Retrieve runs the configured strategy and truncates the fused result to
// the final context size, bounding both prompt size and cost.
func (s *Service) Retrieve(ctx context.Context, query string, documentIDs []string, params Params) ([]Chunk, error) {
	var (
		chunks []Chunk
		err    error
	)

	switch params.Strategy {
	case StrategyBasic, "":
		chunks, err = s.vectorSearch(ctx, query, documentIDs, params)
	case StrategyHybrid:
		chunks, err = s.hybridSearch(ctx, query, documentIDs, params)
	case StrategyMultiQueryVector:
		chunks, err = s.multiQueryVector(ctx, query, documentIDs, params)
	case StrategyMultiQueryHybrid:
		chunks, err = s.multiQueryHybrid(ctx, query, documentIDs, params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, params.Strategy)
	}
	if err != nil {
		return nil, err
	}

	if params.FinalContextSize > 0 && len(chunks) > params.FinalContextSize {
		chunks = chunks[:params.FinalContextSize]
	}
	slog.InfoContext(ctx, "retrieval complete", "strategy", params.Strategy, "chunks", len(chunks))
	return chunks, nil
}

func (s *Service) vectorSearch(ctx context.Context, query string, documentIDs []string, params Params) ([]Chunk, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.backend.VectorSearch(ctx, vector, documentIDs, params.SimilarityThreshold, params.ChunksPerSearch)
}

// hybridSearch fuses one vector and one keyword search over the same query
// with the project's configured weights.
func (s *Service) hybridSearch(ctx context.Context, query string, documentIDs []string, params Params) ([]Chunk, error) {
	vectorResults, err := s.vectorSearch(ctx, query, documentIDs, params)
	if err != nil {
		return nil, err
	}
	keywordResults, err := s.backend.KeywordSearch(ctx, query, documentIDs, params.ChunksPerSearch)
	if err != nil {
		return nil, err
	}
	return Fuse(
		[][]Chunk{vectorResults, keywordResults},
		[]float64{params.VectorWeight, params.KeywordWeight},
	)
}

func (s *Service) multiQueryVector(ctx context.Context, query string, documentIDs []string, params Params) ([]Chunk, error) {
	queries := s.expander.Expand(ctx, query, params.NumberOfQueries)

	lists := make([][]Chunk, 0, len(queries))
	for _, q := range queries {
		results, err := s.vectorSearch(ctx, q, documentIDs, params)
		if err != nil {
			return nil, err
		}
		lists = append(lists, results)
	}
	return Fuse(lists, nil)
}

// multiQueryHybrid fuses twice: per-variant hybrid fusion first, then a
// uniform-weight fusion across the variant lists.
func (s *Service) multiQueryHybrid(ctx context.Context, query string, documentIDs []string, params Params) ([]Chunk, error) {
	queries := s.expander.Expand(ctx, query, params.NumberOfQueries)

	lists := make([][]Chunk, 0, len(queries))
	for _, q := range queries {
		fused, err := s.hybridSearch(ctx, q, documentIDs, params)
		if err != nil {
			return nil, err
		}
		lists = append(lists, fused)
	}
	return Fuse(lists, nil)
}
