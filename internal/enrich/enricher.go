package enrich

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"tessera/backend/internal/chunk"
	"tessera/backend/internal/partition"
)

// maxConcurrent bounds in-flight AI calls. Excess chunks queue in the pool
// until a worker frees up.
const maxConcurrent = 5

// aiThreshold is the text length above which a plain-text chunk is worth an
// AI call; shorter chunks keep their raw text as enriched content.
const aiThreshold = 1000

// progressInterval controls how often enrichment progress is reported.
const progressInterval = 5

// Message is a multi-modal LLM request: prompt text plus base64-encoded
// image attachments.
type Message struct {
	Text   string
	Images []string
}

type LLM interface {
	Invoke(ctx context.Context, msg Message) (string, error)
}

// ProgressReporter receives periodic enrichment progress. Implementations
// typically forward to the document status tracker.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, current, total int)
}

// ProcessedChunk is a chunk after enrichment: Content is the
// search-optimized text used for embedding, Original keeps the raw payloads
// for citation and re-display.
type ProcessedChunk struct {
	Content   string
	Original  chunk.Content
	Page      int
	CharCount int
	Enriched  bool
}

type Enricher struct {
	llm      LLM
	reporter ProgressReporter
}

func NewEnricher(llm LLM, reporter ProgressReporter) *Enricher {
	return &Enricher{llm: llm, reporter: reporter}
}

// Needs reports whether a chunk warrants an AI call: any table, any image,
// or text longer than the threshold.
func Needs(content chunk.Content) bool {
	return len(content.Tables) > 0 || len(content.Images) > 0 || len(content.Text) > aiThreshold
}

// Enrich produces the search-optimized content for one chunk. Any
// invocation failure or invalid response falls back to the cleaned raw
// text; enrichment never fails a chunk.
func (e *Enricher) Enrich(ctx context.Context, c chunk.Chunk, source partition.SourceKind) ProcessedChunk {
	content := chunk.Extract(c, source)

	processed := ProcessedChunk{
		Content:  content.Text,
		Original: content,
		Page:     c.Page,
	}

	if Needs(content) {
		processed.Content, processed.Enriched = e.summarize(ctx, content)
	}

	processed.CharCount = len(processed.Content)
	return processed
}

func (e *Enricher) summarize(ctx context.Context, content chunk.Content) (string, bool) {
	cleaned := CleanText(content.Text)
	if len(cleaned) < 10 {
		return content.Text, false
	}

	response, err := e.llm.Invoke(ctx, Message{
		Text:   buildPrompt(cleaned, content.Tables),
		Images: content.Images,
	})
	if err != nil {
		slog.WarnContext(ctx, "enrichment call failed, using raw text", "error", err)
		return cleaned, false
	}

	if reason := Validate(response); reason != "" {
		slog.WarnContext(ctx, "enrichment response rejected, using raw text", "reason", reason)
		return cleaned, false
	}
	return response, true
}

// EnrichAll enriches chunks with bounded parallelism. Results are written
// into a pre-sized slice indexed by each chunk's original position, so
// output order never depends on completion order. Progress is reported at
// least every five completed chunks and unconditionally on the last one.
func (e *Enricher) EnrichAll(ctx context.Context, chunks []chunk.Chunk, source partition.SourceKind) ([]ProcessedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(maxConcurrent)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	results := make([]ProcessedChunk, len(chunks))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)

	for i := range chunks {
		i := i
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i] = e.Enrich(ctx, chunks[i], source)

			mu.Lock()
			completed++
			done := completed
			mu.Unlock()

			if e.reporter != nil && (done%progressInterval == 0 || done == len(chunks)) {
				e.reporter.ReportProgress(ctx, done, len(chunks))
			}
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, submitErr
		}
	}
	wg.Wait()

	return results, nil
}
