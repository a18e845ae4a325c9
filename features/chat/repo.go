package chat

import (
	"context"
	"database/sql"
	"encoding/json"

	"tessera/backend/internal/retrieval"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateChat(ctx context.Context, c *Chat) error {
	query := `INSERT INTO chats (project_id, title) VALUES ($1, $2) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, c.ProjectID, c.Title).Scan(&c.ID, &c.CreatedAt)
}

func (r *PostgresRepo) GetChat(ctx context.Context, id string) (*Chat, error) {
	c := &Chat{}
	query := `SELECT id, project_id, title, created_at FROM chats WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.ProjectID, &c.Title, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepo) ListByProject(ctx context.Context, projectID string) ([]Chat, error) {
	query := `SELECT id, project_id, title, created_at FROM chats WHERE project_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Title, &c.CreatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (r *PostgresRepo) DeleteChat(ctx context.Context, id string) error {
	// Messages go with the chat via ON DELETE CASCADE.
	query := `DELETE FROM chats WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) SaveMessage(ctx context.Context, m *Message) error {
	citations, err := json.Marshal(m.Citations)
	if err != nil {
		return err
	}
	query := `INSERT INTO messages (chat_id, role, content, citations) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, m.ChatID, m.Role, m.Content, citations).Scan(&m.ID, &m.CreatedAt)
}

func (r *PostgresRepo) GetMessages(ctx context.Context, chatID string) ([]Message, error) {
	query := `SELECT id, chat_id, role, content, citations, created_at FROM messages WHERE chat_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			m         Message
			citations []byte
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &citations, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(citations) > 0 {
			var parsed []retrieval.Citation
			if err := json.Unmarshal(citations, &parsed); err != nil {
				return nil, err
			}
			m.Citations = parsed
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
