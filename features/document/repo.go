package document

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"tessera/backend/internal/status"
	"tessera/backend/internal/worker"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const docColumns = `id, project_id, filename, source_url, storage_key, processing_status, status_details, created_at, updated_at`

func (r *PostgresRepo) Save(ctx context.Context, doc *Document) error {
	query := `INSERT INTO project_documents (project_id, filename, source_url, storage_key, processing_status) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query,
		doc.ProjectID, doc.Filename, nullable(doc.SourceURL), nullable(doc.StorageKey), string(doc.ProcessingStatus),
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Document, error) {
	query := `SELECT ` + docColumns + ` FROM project_documents WHERE id = $1 AND deleted_at IS NULL`
	return scanDocument(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepo) ListByProject(ctx context.Context, projectID string) ([]Document, error) {
	query := `SELECT ` + docColumns + ` FROM project_documents WHERE project_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) IDsByProject(ctx context.Context, projectID string) ([]string, error) {
	query := `SELECT id FROM project_documents WHERE project_id = $1 AND deleted_at IS NULL`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM project_documents WHERE deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE project_documents SET deleted_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// UpdateStatus writes the new status and shallow-merges the detail patch
// into the stored jsonb. Patch fields are omitempty, so absent stages are
// preserved by the concatenation.
func (r *PostgresRepo) UpdateStatus(ctx context.Context, documentID string, s status.Status, patch status.Details) error {
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	query := `UPDATE project_documents SET processing_status = $1, status_details = COALESCE(status_details, '{}'::jsonb) || $2::jsonb, updated_at = NOW() WHERE id = $3`
	_, err = r.db.ExecContext(ctx, query, string(s), patchJSON, documentID)
	return err
}

func (r *PostgresRepo) GetStatus(ctx context.Context, documentID string) (status.Status, error) {
	var s string
	query := `SELECT processing_status FROM project_documents WHERE id = $1 AND deleted_at IS NULL`
	if err := r.db.QueryRowContext(ctx, query, documentID).Scan(&s); err != nil {
		return "", err
	}
	return status.Status(s), nil
}

// Filenames resolves document ids to filenames in one query.
func (r *PostgresRepo) Filenames(ctx context.Context, documentIDs []string) (map[string]string, error) {
	if len(documentIDs) == 0 {
		return map[string]string{}, nil
	}
	query := `SELECT id, filename FROM project_documents WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(documentIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]string, len(documentIDs))
	for rows.Next() {
		var id, filename string
		if err := rows.Scan(&id, &filename); err != nil {
			return nil, err
		}
		names[id] = filename
	}
	return names, rows.Err()
}

// GetSource resolves the pipeline's view of a document.
func (r *PostgresRepo) GetSource(ctx context.Context, documentID string) (worker.SourceInfo, error) {
	var (
		info       worker.SourceInfo
		sourceURL  sql.NullString
		storageKey sql.NullString
	)
	query := `SELECT filename, source_url, storage_key FROM project_documents WHERE id = $1 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, documentID).Scan(&info.Filename, &sourceURL, &storageKey)
	if err != nil {
		return worker.SourceInfo{}, err
	}
	info.SourceURL = sourceURL.String
	info.StorageKey = storageKey.String
	return info, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc        Document
		sourceURL  sql.NullString
		storageKey sql.NullString
		details    []byte
		st         string
	)
	err := row.Scan(&doc.ID, &doc.ProjectID, &doc.Filename, &sourceURL, &storageKey, &st, &details, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.SourceURL = sourceURL.String
	doc.StorageKey = storageKey.String
	doc.ProcessingStatus = status.Status(st)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &doc.Details); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
