package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"tessera/backend/internal/middleware"
	"tessera/backend/internal/status"
)

// IngestConsumer handles ingest.task messages. Each message names one
// document; the pipeline runs it end to end. Failures are recorded on the
// document rather than requeued: the processing outcome lives in the
// document row, and a retry is an explicit re-process request.
type IngestConsumer struct {
	pipeline *Pipeline
	tracker  *status.Tracker
}

func NewIngestConsumer(pipeline *Pipeline, tracker *status.Tracker) *IngestConsumer {
	return &IngestConsumer{pipeline: pipeline, tracker: tracker}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload TaskPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	correlationID := payload.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	if payload.DocumentID == "" {
		slog.ErrorContext(ctx, "missing document id, dropping task")
		return nil
	}

	slog.InfoContext(ctx, "processing document", "document_id", payload.DocumentID)

	if err := h.pipeline.Run(ctx, payload.DocumentID); err != nil {
		slog.ErrorContext(ctx, "document processing failed", "document_id", payload.DocumentID, "error", err)
		if failErr := h.tracker.Fail(ctx, payload.DocumentID, err); failErr != nil {
			slog.ErrorContext(ctx, "failed to mark document failed", "document_id", payload.DocumentID, "error", failErr)
			return failErr // Retry so the failure is eventually recorded
		}
	}
	return nil
}
