package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"tessera/backend/internal/chunk"
	"tessera/backend/internal/embed"
	"tessera/backend/internal/enrich"
	"tessera/backend/internal/partition"
	"tessera/backend/internal/status"
)

// Pipeline runs the four processing stages for one document, strictly in
// order: partition, chunk, enrich, embed. Each stage transition is recorded
// on the document before the next stage starts, so an observer polling the
// document always sees where processing stands.
type Pipeline struct {
	docs        DocumentFetcher
	objects     ObjectStore
	partitioner partition.Partitioner
	llm         enrich.LLM
	embedder    embed.Embedder
	chunkStore  embed.Store
	deleter     ChunkDeleter
	tracker     *status.Tracker
}

func NewPipeline(
	docs DocumentFetcher,
	objects ObjectStore,
	partitioner partition.Partitioner,
	llm enrich.LLM,
	embedder embed.Embedder,
	chunkStore embed.Store,
	deleter ChunkDeleter,
	tracker *status.Tracker,
) *Pipeline {
	return &Pipeline{
		docs:        docs,
		objects:     objects,
		partitioner: partitioner,
		llm:         llm,
		embedder:    embedder,
		chunkStore:  chunkStore,
		deleter:     deleter,
		tracker:     tracker,
	}
}

// Run processes a single document end to end. The returned error is the
// stage failure; the caller decides whether it also marks the document
// failed.
func (p *Pipeline) Run(ctx context.Context, documentID string) error {
	info, err := p.docs.GetSource(ctx, documentID)
	if err != nil {
		return fmt.Errorf("resolve document: %w", err)
	}

	req, sourceKind, cleanup, err := p.resolveSource(ctx, documentID, info)
	if err != nil {
		return err
	}
	defer cleanup()

	// Stage 1: partition.
	if err := p.tracker.Transition(ctx, documentID, status.Partitioning, status.Details{}); err != nil {
		return err
	}
	elements, err := p.partitioner.Partition(ctx, req)
	if err != nil {
		return fmt.Errorf("partition: %w", err)
	}
	summary := partition.Summarize(elements)
	slog.InfoContext(ctx, "document partitioned",
		"document_id", documentID, "elements", len(elements), "tables", summary.Tables, "images", summary.Images)

	// Stage 2: chunk.
	if err := p.tracker.Transition(ctx, documentID, status.Chunking, status.Details{
		Partitioning: &status.PartitioningDetail{
			ElementsFound: elementCounts(summary),
			TotalElements: len(elements),
		},
	}); err != nil {
		return err
	}
	chunks := chunk.Split(elements, chunk.DefaultOptions())
	stats := chunk.MapElements(chunks, elements, sourceKind)

	// Stage 3: enrich.
	if err := p.tracker.Transition(ctx, documentID, status.Summarizing, status.Details{
		Chunking: &status.ChunkingDetail{TotalChunks: len(chunks), Mapping: &stats},
	}); err != nil {
		return err
	}
	enricher := enrich.NewEnricher(p.llm, &progressReporter{tracker: p.tracker, documentID: documentID})
	processed, err := enricher.EnrichAll(ctx, chunks, sourceKind)
	if err != nil {
		return fmt.Errorf("enrich: %w", err)
	}

	// Stage 4: embed and persist. Old chunks go first so a re-run never
	// leaves a mix of generations in the index.
	if err := p.tracker.Transition(ctx, documentID, status.Vectorization, status.Details{}); err != nil {
		return err
	}
	if err := p.deleter.DeleteChunks(ctx, documentID); err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}
	stage := embed.NewStage(p.embedder, p.chunkStore)
	stored, err := stage.Process(ctx, documentID, processed)
	if err != nil {
		return fmt.Errorf("embed after %d stored chunks: %w", stored, err)
	}

	if err := p.tracker.Transition(ctx, documentID, status.Completed, status.Details{}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "document processing completed", "document_id", documentID, "chunks", stored)
	return nil
}

func (p *Pipeline) resolveSource(ctx context.Context, documentID string, info SourceInfo) (partition.Request, partition.SourceKind, func(), error) {
	noop := func() {}
	switch {
	case info.SourceURL != "" && info.StorageKey != "":
		return partition.Request{}, "", noop, &SourceError{DocumentID: documentID, Reason: "both source url and stored file set"}
	case info.SourceURL != "":
		return partition.Request{URL: info.SourceURL}, partition.SourceURL, noop, nil
	case info.StorageKey != "":
		path, cleanup, err := p.objects.Download(ctx, info.StorageKey)
		if err != nil {
			return partition.Request{}, "", noop, fmt.Errorf("fetch stored file: %w", err)
		}
		req := partition.Request{FilePath: path, FileType: fileType(info.Filename)}
		return req, partition.SourceFile, cleanup, nil
	default:
		return partition.Request{}, "", noop, &SourceError{DocumentID: documentID, Reason: "neither source url nor stored file set"}
	}
}

func fileType(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

func elementCounts(s partition.Summary) map[string]int {
	return map[string]int{
		"text":   s.Text,
		"tables": s.Tables,
		"images": s.Images,
		"titles": s.Titles,
		"other":  s.Other,
	}
}

// progressReporter forwards enrichment progress into the document's status
// details. Write failures only log; progress is advisory.
type progressReporter struct {
	tracker    *status.Tracker
	documentID string
}

func (r *progressReporter) ReportProgress(ctx context.Context, current, total int) {
	err := r.tracker.Note(ctx, r.documentID, status.Details{
		Summarizing: &status.SummarizingDetail{CurrentChunk: current, TotalChunks: total},
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to record enrichment progress", "document_id", r.documentID, "error", err)
	}
}
