package weaviate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"tessera/backend/internal/embed"
	"tessera/backend/internal/retrieval"
	"tessera/backend/internal/vector"
)

var chunkFields = []graphql.Field{
	{Name: "content"},
	{Name: "originalText"},
	{Name: "tables"},
	{Name: "images"},
	{Name: "contentTypes"},
	{Name: "documentId"},
	{Name: "chunkIndex"},
	{Name: "page"},
	{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}, {Name: "score"}}},
}

// Store persists and searches document chunks in Weaviate. It backs both
// the ingestion pipeline's chunk sink and the retrieval search primitives.
type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// UpsertChunk writes one chunk record. Object ids are derived from the
// document id and chunk index so re-ingesting a document overwrites its
// previous chunks in place.
func (s *Store) UpsertChunk(ctx context.Context, rec embed.Record) error {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(rec.DocumentID+"/"+strconv.Itoa(rec.ChunkIndex)))

	props := map[string]interface{}{
		"content":      rec.Content,
		"originalText": rec.OriginalText,
		"tables":       rec.Tables,
		"images":       rec.Images,
		"contentTypes": rec.Types,
		"documentId":   rec.DocumentID,
		"chunkIndex":   rec.ChunkIndex,
		"page":         rec.Page,
		"charCount":    rec.CharCount,
	}

	_, err := s.client.Data().Creator().
		WithClassName(vector.ClassDocumentChunk).
		WithID(id.String()).
		WithProperties(props).
		WithVector(rec.Vector).
		Do(ctx)
	return err
}

// DeleteChunks removes every chunk belonging to a document. Called before
// re-processing and on document deletion.
func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassDocumentChunk).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueText(documentID)).
		Do(ctx)
	return err
}

// VectorSearch runs a nearVector query scoped to the given documents,
// dropping results below the certainty threshold.
func (s *Store) VectorSearch(ctx context.Context, queryVector []float32, documentIDs []string, threshold float64, limit int) ([]retrieval.Chunk, error) {
	near := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(queryVector).
		WithCertainty(float32(threshold))

	query := s.client.GraphQL().Get().
		WithClassName(vector.ClassDocumentChunk).
		WithNearVector(near).
		WithLimit(limit).
		WithFields(chunkFields...)

	if where := documentFilter(documentIDs); where != nil {
		query = query.WithWhere(where)
	}

	res, err := query.Do(ctx)
	if err != nil {
		return nil, err
	}
	return decodeChunks(res)
}

// KeywordSearch runs a BM25 query over chunk content scoped to the given
// documents.
func (s *Store) KeywordSearch(ctx context.Context, query string, documentIDs []string, limit int) ([]retrieval.Chunk, error) {
	bm25 := s.client.GraphQL().Bm25ArgBuilder().
		WithQuery(query).
		WithProperties("content", "originalText")

	get := s.client.GraphQL().Get().
		WithClassName(vector.ClassDocumentChunk).
		WithBM25(bm25).
		WithLimit(limit).
		WithFields(chunkFields...)

	if where := documentFilter(documentIDs); where != nil {
		get = get.WithWhere(where)
	}

	res, err := get.Do(ctx)
	if err != nil {
		return nil, err
	}
	return decodeChunks(res)
}

// GetChunks lists every stored chunk for a document in chunk-index order.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]retrieval.Chunk, error) {
	where := filters.Where().
		WithPath([]string{"documentId"}).
		WithOperator(filters.Equal).
		WithValueText(documentID)

	sortBy := graphql.Sort{Path: []string{"chunkIndex"}, Order: graphql.Asc}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassDocumentChunk).
		WithWhere(where).
		WithSort(sortBy).
		WithLimit(1000).
		WithFields(chunkFields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	return decodeChunks(res)
}

// CountChunks returns the total number of stored chunks across all
// documents.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	meta := graphql.Field{
		Name:   "meta",
		Fields: []graphql.Field{{Name: "count"}},
	}

	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassDocumentChunk).
		WithFields(meta).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	data, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	raw, ok := data[vector.ClassDocumentChunk].([]interface{})
	if !ok || len(raw) == 0 {
		return 0, nil
	}
	entry, ok := raw[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	metaProps, ok := entry["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, _ := metaProps["count"].(float64)
	return int(count), nil
}

func documentFilter(documentIDs []string) *filters.WhereBuilder {
	if len(documentIDs) == 0 {
		return nil
	}
	return filters.Where().
		WithPath([]string{"documentId"}).
		WithOperator(filters.ContainsAny).
		WithValueText(documentIDs...)
}

func decodeChunks(res *models.GraphQLResponse) ([]retrieval.Chunk, error) {
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	raw, ok := data[vector.ClassDocumentChunk].([]interface{})
	if !ok {
		return nil, nil
	}

	chunks := make([]retrieval.Chunk, 0, len(raw))
	for _, item := range raw {
		props, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		chunk := retrieval.Chunk{
			Content:      stringProp(props, "content"),
			OriginalText: stringProp(props, "originalText"),
			Tables:       stringsProp(props, "tables"),
			Images:       stringsProp(props, "images"),
			Types:        stringsProp(props, "contentTypes"),
			DocumentID:   stringProp(props, "documentId"),
		}
		if page, ok := props["page"].(float64); ok {
			chunk.Page = int(page)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				chunk.ID = id
			}
			if certainty, ok := additional["certainty"].(float64); ok {
				chunk.Score = float32(certainty)
			} else if score, ok := additional["score"].(string); ok {
				// BM25 scores come back as strings.
				if f, err := strconv.ParseFloat(score, 32); err == nil {
					chunk.Score = float32(f)
				}
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func stringProp(props map[string]interface{}, key string) string {
	v, _ := props[key].(string)
	return v
}

func stringsProp(props map[string]interface{}, key string) []string {
	raw, ok := props[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
