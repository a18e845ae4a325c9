package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tessera/backend/internal/config"
	"tessera/backend/internal/middleware"
	"tessera/backend/internal/retrieval"
	"tessera/backend/internal/status"
	"tessera/backend/internal/worker"
)

var ErrNoSource = errors.New("document needs a source url or an uploaded file")

type Document struct {
	ID               string         `json:"id"`
	ProjectID        string         `json:"project_id"`
	Filename         string         `json:"filename"`
	SourceURL        string         `json:"source_url,omitempty"`
	StorageKey       string         `json:"-"`
	ProcessingStatus status.Status  `json:"processing_status"`
	Details          status.Details `json:"status_details"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Repository persists document records. It doubles as the status updater
// for the processing pipeline and the filename lookup for context building.
type Repository interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	ListByProject(ctx context.Context, projectID string) ([]Document, error)
	IDsByProject(ctx context.Context, projectID string) ([]string, error)
	SoftDelete(ctx context.Context, id string) error

	status.Updater
	Filenames(ctx context.Context, documentIDs []string) (map[string]string, error)
}

// ChunkStore is the vector-store surface the document feature needs.
type ChunkStore interface {
	GetChunks(ctx context.Context, documentID string) ([]retrieval.Chunk, error)
	DeleteChunks(ctx context.Context, documentID string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo       Repository
	pub        EventPublisher
	chunkStore ChunkStore
	tracker    *status.Tracker
}

func NewService(repo Repository, pub EventPublisher, chunkStore ChunkStore) *Service {
	return &Service{
		repo:       repo,
		pub:        pub,
		chunkStore: chunkStore,
		tracker:    status.NewTracker(repo),
	}
}

// CreateFromURL registers a URL-sourced document and queues it for
// processing immediately; there is no upload step to wait for.
func (s *Service) CreateFromURL(ctx context.Context, projectID, url, filename string) (*Document, error) {
	if url == "" {
		return nil, ErrNoSource
	}
	if filename == "" {
		filename = url
	}

	doc := &Document{
		ProjectID:        projectID,
		Filename:         filename,
		SourceURL:        url,
		ProcessingStatus: status.Queued,
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	s.publishTask(ctx, doc.ID)
	return doc, nil
}

// CreateUpload registers a file-backed document in the uploading state. The
// caller stores the bytes separately and then confirms.
func (s *Service) CreateUpload(ctx context.Context, projectID, filename, storageKey string) (*Document, error) {
	if storageKey == "" {
		return nil, ErrNoSource
	}

	doc := &Document{
		ProjectID:        projectID,
		Filename:         filename,
		StorageKey:       storageKey,
		ProcessingStatus: status.Uploading,
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ConfirmUpload moves an uploaded document to queued and publishes its
// processing task.
func (s *Service) ConfirmUpload(ctx context.Context, id string) error {
	if err := s.tracker.Transition(ctx, id, status.Queued, status.Details{}); err != nil {
		return err
	}
	s.publishTask(ctx, id)
	return nil
}

// Reprocess restarts a finished document from the beginning. Documents
// still mid-pipeline are rejected by the transition check; processing never
// resumes partway.
func (s *Service) Reprocess(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.tracker.Transition(ctx, id, status.Queued, status.Details{}); err != nil {
		return err
	}
	s.publishTask(ctx, id)
	return nil
}

type Detail struct {
	Document
	Chunks      []retrieval.Chunk `json:"chunks"`
	TotalChunks int               `json:"total_chunks"`
}

func (s *Service) Get(ctx context.Context, id string, includeChunks bool) (*Detail, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &Detail{Document: *doc, Chunks: []retrieval.Chunk{}}
	if includeChunks {
		chunks, err := s.chunkStore.GetChunks(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "failed to fetch chunks", "error", err, "document_id", id)
			chunks = nil
		}
		if chunks != nil {
			detail.Chunks = chunks
		}
		detail.TotalChunks = len(detail.Chunks)
	}
	return detail, nil
}

func (s *Service) List(ctx context.Context, projectID string) ([]Document, error) {
	return s.repo.ListByProject(ctx, projectID)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	// Vector store first: a row without chunks is harmless, orphaned
	// chunks are not.
	if err := s.chunkStore.DeleteChunks(ctx, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) publishTask(ctx context.Context, documentID string) {
	payload, _ := json.Marshal(worker.TaskPayload{
		DocumentID:    documentID,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicIngestTask, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest task", "error", err, "document_id", documentID)
	} else {
		slog.InfoContext(ctx, "published ingest task", "document_id", documentID)
	}
}
