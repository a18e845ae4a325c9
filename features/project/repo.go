package project

import (
	"context"
	"database/sql"
	"errors"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, p *Project) error {
	query := `INSERT INTO projects (name) VALUES ($1) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, p.Name).Scan(&p.ID, &p.CreatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Project, error) {
	p := &Project{}
	query := `SELECT id, name, created_at FROM projects WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Project, error) {
	query := `SELECT id, name, created_at FROM projects ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM projects`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM projects WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// GetSettings returns nil without error when the project never saved
// settings; the service substitutes the defaults.
func (r *PostgresRepo) GetSettings(ctx context.Context, projectID string) (*Settings, error) {
	s := &Settings{}
	query := `SELECT project_id, rag_strategy, chunks_per_search, final_context_size, similarity_threshold, vector_weight, keyword_weight, number_of_queries FROM project_settings WHERE project_id = $1`
	err := r.db.QueryRowContext(ctx, query, projectID).Scan(
		&s.ProjectID, &s.RAGStrategy, &s.ChunksPerSearch, &s.FinalContextSize,
		&s.SimilarityThreshold, &s.VectorWeight, &s.KeywordWeight, &s.NumberOfQueries,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) UpsertSettings(ctx context.Context, s *Settings) error {
	query := `
		INSERT INTO project_settings (project_id, rag_strategy, chunks_per_search, final_context_size, similarity_threshold, vector_weight, keyword_weight, number_of_queries)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (project_id) DO UPDATE SET
			rag_strategy = EXCLUDED.rag_strategy,
			chunks_per_search = EXCLUDED.chunks_per_search,
			final_context_size = EXCLUDED.final_context_size,
			similarity_threshold = EXCLUDED.similarity_threshold,
			vector_weight = EXCLUDED.vector_weight,
			keyword_weight = EXCLUDED.keyword_weight,
			number_of_queries = EXCLUDED.number_of_queries,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ProjectID, s.RAGStrategy, s.ChunksPerSearch, s.FinalContextSize,
		s.SimilarityThreshold, s.VectorWeight, s.KeywordWeight, s.NumberOfQueries,
	)
	return err
}
