package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tessera/backend/internal/retrieval"
)

var (
	ErrInvalidStrategy = errors.New("invalid retrieval strategy")
	ErrInvalidWeight   = errors.New("retrieval weights must be non-negative")
)

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Settings is the per-project retrieval configuration. Every field has a
// working default; a project with no stored row gets DefaultSettings.
type Settings struct {
	ProjectID           string  `json:"project_id"`
	RAGStrategy         string  `json:"rag_strategy"`
	ChunksPerSearch     int     `json:"chunks_per_search"`
	FinalContextSize    int     `json:"final_context_size"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	VectorWeight        float64 `json:"vector_weight"`
	KeywordWeight       float64 `json:"keyword_weight"`
	NumberOfQueries     int     `json:"number_of_queries"`
}

func DefaultSettings(projectID string) Settings {
	return Settings{
		ProjectID:           projectID,
		RAGStrategy:         retrieval.StrategyBasic,
		ChunksPerSearch:     10,
		FinalContextSize:    5,
		SimilarityThreshold: 0.3,
		VectorWeight:        0.7,
		KeywordWeight:       0.3,
		NumberOfQueries:     5,
	}
}

// Params converts stored settings to the retrieval engine's parameter set.
func (s Settings) Params() retrieval.Params {
	return retrieval.Params{
		Strategy:            s.RAGStrategy,
		ChunksPerSearch:     s.ChunksPerSearch,
		FinalContextSize:    s.FinalContextSize,
		SimilarityThreshold: s.SimilarityThreshold,
		VectorWeight:        s.VectorWeight,
		KeywordWeight:       s.KeywordWeight,
		NumberOfQueries:     s.NumberOfQueries,
	}
}

func (s Settings) Validate() error {
	switch s.RAGStrategy {
	case retrieval.StrategyBasic, retrieval.StrategyHybrid,
		retrieval.StrategyMultiQueryVector, retrieval.StrategyMultiQueryHybrid:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, s.RAGStrategy)
	}
	if s.VectorWeight < 0 || s.KeywordWeight < 0 {
		return ErrInvalidWeight
	}
	if s.ChunksPerSearch <= 0 {
		return errors.New("chunks_per_search must be positive")
	}
	if s.FinalContextSize <= 0 {
		return errors.New("final_context_size must be positive")
	}
	if s.NumberOfQueries <= 0 {
		return errors.New("number_of_queries must be positive")
	}
	return nil
}

type Repository interface {
	Create(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]Project, error)
	Delete(ctx context.Context, id string) error

	GetSettings(ctx context.Context, projectID string) (*Settings, error)
	UpsertSettings(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, name string) (*Project, error) {
	if name == "" {
		return nil, errors.New("project name is required")
	}
	p := &Project{Name: name}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Project, error) {
	return s.repo.List(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// GetSettings returns the stored settings or the defaults when none were
// ever saved.
func (s *Service) GetSettings(ctx context.Context, projectID string) (*Settings, error) {
	stored, err := s.repo.GetSettings(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		defaults := DefaultSettings(projectID)
		return &defaults, nil
	}
	return stored, nil
}

func (s *Service) UpdateSettings(ctx context.Context, set *Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	return s.repo.UpsertSettings(ctx, set)
}
