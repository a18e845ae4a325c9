package worker_test

import (
	"context"
	"sync"

	"tessera/backend/internal/embed"
	"tessera/backend/internal/enrich"
	"tessera/backend/internal/partition"
	"tessera/backend/internal/status"
	"tessera/backend/internal/worker"
)

type fakeDocs struct {
	info worker.SourceInfo
	err  error
}

func (f *fakeDocs) GetSource(ctx context.Context, documentID string) (worker.SourceInfo, error) {
	return f.info, f.err
}

type fakeObjects struct {
	path      string
	err       error
	gotKey    string
	cleanedUp bool
}

func (f *fakeObjects) Download(ctx context.Context, key string) (string, func(), error) {
	f.gotKey = key
	if f.err != nil {
		return "", func() {}, f.err
	}
	return f.path, func() { f.cleanedUp = true }, nil
}

type fakePartitioner struct {
	elements []partition.Element
	err      error
	gotReq   partition.Request
}

func (f *fakePartitioner) Partition(ctx context.Context, req partition.Request) ([]partition.Element, error) {
	f.gotReq = req
	return f.elements, f.err
}

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Invoke(ctx context.Context, msg enrich.Message) (string, error) {
	return f.response, f.err
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1}
	}
	return vectors, nil
}

type fakeChunkStore struct {
	mu      sync.Mutex
	records []embed.Record
	err     error
}

func (f *fakeChunkStore) UpsertChunk(ctx context.Context, rec embed.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type fakeDeleter struct {
	deleted []string
	err     error
}

func (f *fakeDeleter) DeleteChunks(ctx context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, documentID)
	return nil
}

// recordingUpdater is an in-memory status.Updater tracking every write.
type recordingUpdater struct {
	mu       sync.Mutex
	current  status.Status
	details  status.Details
	statuses []status.Status
	err      error
}

func newRecordingUpdater(initial status.Status) *recordingUpdater {
	return &recordingUpdater{current: initial}
}

func (u *recordingUpdater) UpdateStatus(ctx context.Context, documentID string, s status.Status, patch status.Details) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return u.err
	}
	u.current = s
	u.details = u.details.Merge(patch)
	u.statuses = append(u.statuses, s)
	return nil
}

func (u *recordingUpdater) GetStatus(ctx context.Context, documentID string) (status.Status, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.current, nil
}
