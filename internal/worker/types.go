package worker

import (
	"context"
	"fmt"
)

// TaskPayload is the NSQ message queued when a document is ready for
// processing.
type TaskPayload struct {
	DocumentID    string `json:"document_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// SourceInfo is the subset of a document record the pipeline needs to
// locate its raw input. Exactly one of SourceURL or StorageKey is set on a
// well-formed document.
type SourceInfo struct {
	Filename   string
	SourceURL  string
	StorageKey string
}

// DocumentFetcher resolves a document's source location.
type DocumentFetcher interface {
	GetSource(ctx context.Context, documentID string) (SourceInfo, error)
}

// ObjectStore hands out a local path for an uploaded object. The cleanup
// function releases any temporary copy and is safe to call more than once.
type ObjectStore interface {
	Download(ctx context.Context, key string) (path string, cleanup func(), err error)
}

// ChunkDeleter removes a document's previously stored chunks so a re-run
// never leaves stale vectors behind.
type ChunkDeleter interface {
	DeleteChunks(ctx context.Context, documentID string) error
}

// SourceError marks a document whose record cannot be processed: neither a
// source URL nor a stored file, or ambiguously both.
type SourceError struct {
	DocumentID string
	Reason     string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("document %s has no processable source: %s", e.DocumentID, e.Reason)
}
