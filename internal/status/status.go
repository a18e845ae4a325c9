package status

import (
	"context"
	"errors"
	"fmt"
)

// Status is a document's position in the processing state machine.
type Status string

const (
	Uploading     Status = "uploading"
	Queued        Status = "queued"
	Partitioning  Status = "partitioning"
	Chunking      Status = "chunking"
	Summarizing   Status = "summarizing"
	Vectorization Status = "vectorization"
	Completed     Status = "completed"
	Failed        Status = "failed"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// order defines the forward-only pipeline sequence. Failed is reachable
// from any non-terminal state; nothing leaves a terminal state except a
// full re-process, which restarts from Queued.
var order = map[Status]int{
	Uploading:     0,
	Queued:        1,
	Partitioning:  2,
	Chunking:      3,
	Summarizing:   4,
	Vectorization: 5,
	Completed:     6,
}

func (s Status) Terminal() bool {
	return s == Completed || s == Failed
}

// CanTransition reports whether moving from one status to another is legal.
// Forward moves along the pipeline are allowed, as is failing from any
// non-terminal state. Re-processing re-enters at Queued.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if to == Failed {
		return !from.Terminal()
	}
	if to == Queued {
		// Normal progression from Uploading, or a re-process restarting a
		// finished document from the beginning.
		return from == Uploading || from.Terminal()
	}
	fromOrder, ok := order[from]
	if !ok {
		return false
	}
	toOrder, ok := order[to]
	if !ok {
		return false
	}
	return toOrder > fromOrder
}

// Updater persists a document's status and merges a details patch.
type Updater interface {
	UpdateStatus(ctx context.Context, documentID string, status Status, patch Details) error
	GetStatus(ctx context.Context, documentID string) (Status, error)
}

// Tracker maintains the per-document state machine on top of a persistence
// collaborator.
type Tracker struct {
	updater Updater
}

func NewTracker(updater Updater) *Tracker {
	return &Tracker{updater: updater}
}

// Transition moves a document to the given status, merging the detail patch
// into the stored details. Illegal moves are rejected before any write.
func (t *Tracker) Transition(ctx context.Context, documentID string, to Status, patch Details) error {
	from, err := t.updater.GetStatus(ctx, documentID)
	if err != nil {
		return fmt.Errorf("resolve current status: %w", err)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return t.updater.UpdateStatus(ctx, documentID, to, patch)
}

// Note merges a detail patch into the stored details without moving the
// state machine. Used for progress updates inside a stage.
func (t *Tracker) Note(ctx context.Context, documentID string, patch Details) error {
	current, err := t.updater.GetStatus(ctx, documentID)
	if err != nil {
		return fmt.Errorf("resolve current status: %w", err)
	}
	return t.updater.UpdateStatus(ctx, documentID, current, patch)
}

// Fail marks the document failed and records the triggering message in the
// error detail.
func (t *Tracker) Fail(ctx context.Context, documentID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return t.Transition(ctx, documentID, Failed, Details{Error: msg})
}
