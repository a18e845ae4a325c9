package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/backend/internal/partition"
	"tessera/backend/internal/status"
	"tessera/backend/internal/worker"
)

func intPtr(v int) *int { return &v }

func distinct(statuses []status.Status) []status.Status {
	var out []status.Status
	for _, s := range statuses {
		if len(out) == 0 || out[len(out)-1] != s {
			out = append(out, s)
		}
	}
	return out
}

func newPipeline(docs *fakeDocs, objects *fakeObjects, part *fakePartitioner, store *fakeChunkStore, deleter *fakeDeleter, updater *recordingUpdater) *worker.Pipeline {
	return worker.NewPipeline(
		docs,
		objects,
		part,
		&fakeLLM{response: "a perfectly adequate summary that is comfortably longer than fifty characters"},
		&fakeEmbedder{},
		store,
		deleter,
		status.NewTracker(updater),
	)
}

func TestPipeline_RunURLDocument(t *testing.T) {
	docs := &fakeDocs{info: worker.SourceInfo{Filename: "page", SourceURL: "https://example.com/doc"}}
	part := &fakePartitioner{elements: []partition.Element{
		{Kind: partition.KindTitle, Text: "Introduction", Page: intPtr(1)},
		{Kind: partition.KindText, Text: "Body paragraph about the topic.", Page: intPtr(1)},
	}}
	store := &fakeChunkStore{}
	deleter := &fakeDeleter{}
	updater := newRecordingUpdater(status.Queued)

	p := newPipeline(docs, &fakeObjects{}, part, store, deleter, updater)
	require.NoError(t, p.Run(context.Background(), "doc-1"))

	assert.Equal(t, []status.Status{
		status.Partitioning,
		status.Chunking,
		status.Summarizing,
		status.Vectorization,
		status.Completed,
	}, distinct(updater.statuses))

	assert.Equal(t, "https://example.com/doc", part.gotReq.URL)
	assert.Empty(t, part.gotReq.FilePath)
	assert.Equal(t, []string{"doc-1"}, deleter.deleted)
	require.NotEmpty(t, store.records)
	assert.Equal(t, "doc-1", store.records[0].DocumentID)

	require.NotNil(t, updater.details.Partitioning)
	assert.Equal(t, 2, updater.details.Partitioning.TotalElements)
	assert.Equal(t, 1, updater.details.Partitioning.ElementsFound["titles"])
	require.NotNil(t, updater.details.Chunking)
	assert.Equal(t, len(store.records), updater.details.Chunking.TotalChunks)
	require.NotNil(t, updater.details.Summarizing)
	assert.Equal(t, updater.details.Summarizing.TotalChunks, updater.details.Summarizing.CurrentChunk)
}

func TestPipeline_RunFileDocument(t *testing.T) {
	docs := &fakeDocs{info: worker.SourceInfo{Filename: "report.PDF", StorageKey: "uploads/report.pdf"}}
	objects := &fakeObjects{path: "/tmp/report.pdf"}
	part := &fakePartitioner{elements: []partition.Element{
		{Kind: partition.KindText, Text: "File content.", Page: intPtr(1)},
	}}
	updater := newRecordingUpdater(status.Queued)

	p := newPipeline(docs, objects, part, &fakeChunkStore{}, &fakeDeleter{}, updater)
	require.NoError(t, p.Run(context.Background(), "doc-2"))

	assert.Equal(t, "uploads/report.pdf", objects.gotKey)
	assert.Equal(t, "/tmp/report.pdf", part.gotReq.FilePath)
	assert.Equal(t, "pdf", part.gotReq.FileType)
	assert.True(t, objects.cleanedUp)
}

func TestPipeline_SourceValidation(t *testing.T) {
	tests := []struct {
		name string
		info worker.SourceInfo
	}{
		{"Neither Set", worker.SourceInfo{Filename: "x"}},
		{"Both Set", worker.SourceInfo{Filename: "x", SourceURL: "https://a", StorageKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updater := newRecordingUpdater(status.Queued)
			p := newPipeline(&fakeDocs{info: tt.info}, &fakeObjects{}, &fakePartitioner{}, &fakeChunkStore{}, &fakeDeleter{}, updater)

			err := p.Run(context.Background(), "doc-3")
			var srcErr *worker.SourceError
			require.ErrorAs(t, err, &srcErr)
			assert.Equal(t, "doc-3", srcErr.DocumentID)
			assert.Empty(t, updater.statuses, "no stage should start on a bad source")
		})
	}
}

func TestPipeline_PartitionFailureStopsEarly(t *testing.T) {
	docs := &fakeDocs{info: worker.SourceInfo{SourceURL: "https://example.com"}}
	part := &fakePartitioner{err: errors.New("docling unreachable")}
	store := &fakeChunkStore{}
	updater := newRecordingUpdater(status.Queued)

	p := newPipeline(docs, &fakeObjects{}, part, store, &fakeDeleter{}, updater)
	err := p.Run(context.Background(), "doc-4")

	require.ErrorContains(t, err, "docling unreachable")
	assert.Equal(t, []status.Status{status.Partitioning}, updater.statuses)
	assert.Empty(t, store.records)
}

func TestPipeline_StaleChunksDeletedBeforeStore(t *testing.T) {
	docs := &fakeDocs{info: worker.SourceInfo{SourceURL: "https://example.com"}}
	part := &fakePartitioner{elements: []partition.Element{
		{Kind: partition.KindText, Text: "Some text."},
	}}
	deleter := &fakeDeleter{err: errors.New("weaviate down")}
	store := &fakeChunkStore{}
	updater := newRecordingUpdater(status.Queued)

	p := newPipeline(docs, &fakeObjects{}, part, store, deleter, updater)
	err := p.Run(context.Background(), "doc-5")

	require.ErrorContains(t, err, "delete stale chunks")
	assert.Empty(t, store.records, "nothing may be stored if stale chunks survive")
}
