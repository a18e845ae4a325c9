package document_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tessera/backend/features/document"
	"tessera/backend/internal/retrieval"
	"tessera/backend/internal/status"
	"tessera/backend/internal/worker"
)

// MockRepo implements document.Repository
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Save(ctx context.Context, doc *document.Document) error {
	args := m.Called(ctx, doc)
	if args.Error(0) == nil && doc.ID == "" {
		doc.ID = "doc-1"
	}
	return args.Error(0)
}

func (m *MockRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockRepo) ListByProject(ctx context.Context, projectID string) ([]document.Document, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]document.Document), args.Error(1)
}

func (m *MockRepo) IDsByProject(ctx context.Context, projectID string) ([]string, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRepo) SoftDelete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepo) UpdateStatus(ctx context.Context, documentID string, s status.Status, patch status.Details) error {
	args := m.Called(ctx, documentID, s, patch)
	return args.Error(0)
}

func (m *MockRepo) GetStatus(ctx context.Context, documentID string) (status.Status, error) {
	args := m.Called(ctx, documentID)
	return args.Get(0).(status.Status), args.Error(1)
}

func (m *MockRepo) Filenames(ctx context.Context, documentIDs []string) (map[string]string, error) {
	args := m.Called(ctx, documentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

type MockChunkStore struct {
	mock.Mock
}

func (m *MockChunkStore) GetChunks(ctx context.Context, documentID string) ([]retrieval.Chunk, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.Chunk), args.Error(1)
}

func (m *MockChunkStore) DeleteChunks(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

func TestService_CreateFromURL(t *testing.T) {
	t.Run("Saves Queued And Publishes", func(t *testing.T) {
		repo := new(MockRepo)
		pub := new(MockPublisher)
		svc := document.NewService(repo, pub, new(MockChunkStore))

		repo.On("Save", mock.Anything, mock.MatchedBy(func(doc *document.Document) bool {
			return doc.ProcessingStatus == status.Queued && doc.SourceURL == "https://example.com/doc"
		})).Return(nil)
		pub.On("Publish", "ingest.task", mock.MatchedBy(func(body []byte) bool {
			var payload worker.TaskPayload
			return json.Unmarshal(body, &payload) == nil && payload.DocumentID == "doc-1"
		})).Return(nil)

		doc, err := svc.CreateFromURL(context.Background(), "proj-1", "https://example.com/doc", "")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/doc", doc.Filename, "filename falls back to the url")
		repo.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("Missing URL", func(t *testing.T) {
		svc := document.NewService(new(MockRepo), new(MockPublisher), new(MockChunkStore))
		_, err := svc.CreateFromURL(context.Background(), "proj-1", "", "name")
		assert.ErrorIs(t, err, document.ErrNoSource)
	})

	t.Run("Publish Failure Does Not Fail Create", func(t *testing.T) {
		repo := new(MockRepo)
		pub := new(MockPublisher)
		svc := document.NewService(repo, pub, new(MockChunkStore))

		repo.On("Save", mock.Anything, mock.Anything).Return(nil)
		pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nsqd down"))

		_, err := svc.CreateFromURL(context.Background(), "proj-1", "https://example.com", "n")
		assert.NoError(t, err, "the record exists; the task can be re-published")
	})
}

func TestService_ConfirmUpload(t *testing.T) {
	repo := new(MockRepo)
	pub := new(MockPublisher)
	svc := document.NewService(repo, pub, new(MockChunkStore))

	repo.On("GetStatus", mock.Anything, "doc-1").Return(status.Uploading, nil)
	repo.On("UpdateStatus", mock.Anything, "doc-1", status.Queued, mock.Anything).Return(nil)
	pub.On("Publish", "ingest.task", mock.Anything).Return(nil)

	require.NoError(t, svc.ConfirmUpload(context.Background(), "doc-1"))
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestService_Reprocess(t *testing.T) {
	t.Run("Finished Document Requeues", func(t *testing.T) {
		repo := new(MockRepo)
		pub := new(MockPublisher)
		svc := document.NewService(repo, pub, new(MockChunkStore))

		repo.On("Get", mock.Anything, "doc-1").Return(&document.Document{ID: "doc-1"}, nil)
		repo.On("GetStatus", mock.Anything, "doc-1").Return(status.Failed, nil)
		repo.On("UpdateStatus", mock.Anything, "doc-1", status.Queued, mock.Anything).Return(nil)
		pub.On("Publish", "ingest.task", mock.Anything).Return(nil)

		require.NoError(t, svc.Reprocess(context.Background(), "doc-1"))
		pub.AssertExpectations(t)
	})

	t.Run("Mid Pipeline Rejected", func(t *testing.T) {
		repo := new(MockRepo)
		pub := new(MockPublisher)
		svc := document.NewService(repo, pub, new(MockChunkStore))

		repo.On("Get", mock.Anything, "doc-1").Return(&document.Document{ID: "doc-1"}, nil)
		repo.On("GetStatus", mock.Anything, "doc-1").Return(status.Summarizing, nil)

		err := svc.Reprocess(context.Background(), "doc-1")
		assert.ErrorIs(t, err, status.ErrInvalidTransition)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})
}

func TestService_Delete(t *testing.T) {
	t.Run("Chunks Removed Before Row", func(t *testing.T) {
		repo := new(MockRepo)
		chunks := new(MockChunkStore)
		svc := document.NewService(repo, new(MockPublisher), chunks)

		chunks.On("DeleteChunks", mock.Anything, "doc-1").Return(nil)
		repo.On("SoftDelete", mock.Anything, "doc-1").Return(nil)

		require.NoError(t, svc.Delete(context.Background(), "doc-1"))
		chunks.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("Chunk Deletion Failure Keeps Row", func(t *testing.T) {
		repo := new(MockRepo)
		chunks := new(MockChunkStore)
		svc := document.NewService(repo, new(MockPublisher), chunks)

		chunks.On("DeleteChunks", mock.Anything, "doc-1").Return(errors.New("weaviate down"))

		assert.Error(t, svc.Delete(context.Background(), "doc-1"))
		repo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
	})
}

func TestService_Get(t *testing.T) {
	t.Run("Chunk Store Failure Degrades", func(t *testing.T) {
		repo := new(MockRepo)
		chunks := new(MockChunkStore)
		svc := document.NewService(repo, new(MockPublisher), chunks)

		repo.On("Get", mock.Anything, "doc-1").Return(&document.Document{ID: "doc-1"}, nil)
		chunks.On("GetChunks", mock.Anything, "doc-1").Return(nil, errors.New("weaviate down"))

		detail, err := svc.Get(context.Background(), "doc-1", true)
		require.NoError(t, err)
		assert.Empty(t, detail.Chunks)
		assert.Zero(t, detail.TotalChunks)
	})

	t.Run("Exclude Chunks Skips Store", func(t *testing.T) {
		repo := new(MockRepo)
		chunks := new(MockChunkStore)
		svc := document.NewService(repo, new(MockPublisher), chunks)

		repo.On("Get", mock.Anything, "doc-1").Return(&document.Document{ID: "doc-1"}, nil)

		_, err := svc.Get(context.Background(), "doc-1", false)
		require.NoError(t, err)
		chunks.AssertNotCalled(t, "GetChunks", mock.Anything, mock.Anything)
	})
}
