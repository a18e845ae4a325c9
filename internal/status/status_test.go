package status

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpdater struct {
	current Status
	details Details
	updated []Status
}

func (f *fakeUpdater) UpdateStatus(_ context.Context, _ string, s Status, patch Details) error {
	f.current = s
	f.details = f.details.Merge(patch)
	f.updated = append(f.updated, s)
	return nil
}

func (f *fakeUpdater) GetStatus(_ context.Context, _ string) (Status, error) {
	return f.current, nil
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"Forward Step", Queued, Partitioning, true},
		{"Skip Ahead", Partitioning, Vectorization, true},
		{"Backward", Summarizing, Chunking, false},
		{"Self", Chunking, Chunking, false},
		{"Fail From Mid Pipeline", Summarizing, Failed, true},
		{"Fail From Completed", Completed, Failed, false},
		{"Fail Twice", Failed, Failed, false},
		{"Reprocess From Failed", Failed, Queued, true},
		{"Reprocess From Completed", Completed, Queued, true},
		{"Resume Mid Pipeline Rejected", Failed, Summarizing, false},
		{"Leave Completed", Completed, Vectorization, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTrackerTransition(t *testing.T) {
	t.Run("Legal Transition Persists", func(t *testing.T) {
		u := &fakeUpdater{current: Queued}
		tracker := NewTracker(u)

		err := tracker.Transition(context.Background(), "doc-1", Partitioning, Details{})
		require.NoError(t, err)
		assert.Equal(t, Partitioning, u.current)
	})

	t.Run("Illegal Transition Rejected Before Write", func(t *testing.T) {
		u := &fakeUpdater{current: Completed}
		tracker := NewTracker(u)

		err := tracker.Transition(context.Background(), "doc-1", Vectorization, Details{})
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Empty(t, u.updated)
	})

	t.Run("Note Keeps Status", func(t *testing.T) {
		u := &fakeUpdater{current: Summarizing}
		tracker := NewTracker(u)

		err := tracker.Note(context.Background(), "doc-1", Details{
			Summarizing: &SummarizingDetail{CurrentChunk: 5, TotalChunks: 20},
		})
		require.NoError(t, err)
		assert.Equal(t, Summarizing, u.current)
		require.NotNil(t, u.details.Summarizing)
		assert.Equal(t, 5, u.details.Summarizing.CurrentChunk)
	})

	t.Run("Fail Attaches Error Detail", func(t *testing.T) {
		u := &fakeUpdater{current: Partitioning}
		tracker := NewTracker(u)

		err := tracker.Fail(context.Background(), "doc-1", errors.New("no source"))
		require.NoError(t, err)
		assert.Equal(t, Failed, u.current)
		assert.Equal(t, "no source", u.details.Error)
	})
}

func TestDetailsMerge(t *testing.T) {
	t.Run("Patch Preserves Other Stages", func(t *testing.T) {
		stored := Details{
			Partitioning: &PartitioningDetail{TotalElements: 12},
		}
		patched := stored.Merge(Details{
			Chunking: &ChunkingDetail{TotalChunks: 4},
		})

		require.NotNil(t, patched.Partitioning)
		assert.Equal(t, 12, patched.Partitioning.TotalElements)
		require.NotNil(t, patched.Chunking)
		assert.Equal(t, 4, patched.Chunking.TotalChunks)
	})

	t.Run("Same Stage Is Replaced", func(t *testing.T) {
		stored := Details{Summarizing: &SummarizingDetail{CurrentChunk: 5, TotalChunks: 20}}
		patched := stored.Merge(Details{Summarizing: &SummarizingDetail{CurrentChunk: 10, TotalChunks: 20}})
		assert.Equal(t, 10, patched.Summarizing.CurrentChunk)
	})

	t.Run("Error Field Sticks", func(t *testing.T) {
		stored := Details{Error: "boom"}
		patched := stored.Merge(Details{Chunking: &ChunkingDetail{TotalChunks: 1}})
		assert.Equal(t, "boom", patched.Error)
	})
}
