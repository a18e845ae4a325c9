package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/backend/internal/chunk"
	"tessera/backend/internal/partition"
)

type stubLLM struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	onInvoke func()
}

func (s *stubLLM) Invoke(ctx context.Context, msg Message) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.onInvoke != nil {
		s.onInvoke()
	}
	return s.response, s.err
}

func bigChunk(text string) chunk.Chunk {
	return chunk.Chunk{
		Text:     text,
		Elements: []partition.Element{{Kind: partition.KindText, Text: text}},
	}
}

const validSummary = "SEARCH INDEX: KEY QUESTIONS: What is the revenue trend? KEYWORDS: revenue, margin, 2024"

func TestEnrich(t *testing.T) {
	longText := strings.Repeat("word ", 300)

	t.Run("Cheap Chunk Skips The AI Call", func(t *testing.T) {
		llm := &stubLLM{response: validSummary}
		e := NewEnricher(llm, nil)

		got := e.Enrich(context.Background(), bigChunk("short text"), partition.SourceFile)

		assert.Equal(t, 0, llm.calls)
		assert.Equal(t, "short text", got.Content)
		assert.False(t, got.Enriched)
		assert.Equal(t, len("short text"), got.CharCount)
	})

	t.Run("Long Text Gets Enriched", func(t *testing.T) {
		llm := &stubLLM{response: validSummary}
		e := NewEnricher(llm, nil)

		got := e.Enrich(context.Background(), bigChunk(longText), partition.SourceFile)

		assert.Equal(t, 1, llm.calls)
		assert.Equal(t, validSummary, got.Content)
		assert.True(t, got.Enriched)
	})

	t.Run("Greeting Response Rejected", func(t *testing.T) {
		llm := &stubLLM{response: "Hello! How can I assist you with this document today? Let me know."}
		e := NewEnricher(llm, nil)

		cleaned := CleanText(longText)
		got := e.Enrich(context.Background(), bigChunk(longText), partition.SourceFile)

		assert.Equal(t, cleaned, got.Content)
		assert.False(t, got.Enriched)
	})

	t.Run("Invocation Failure Falls Back", func(t *testing.T) {
		llm := &stubLLM{err: errors.New("rate limited")}
		e := NewEnricher(llm, nil)

		got := e.Enrich(context.Background(), bigChunk(longText), partition.SourceFile)

		assert.Equal(t, CleanText(longText), got.Content)
		assert.False(t, got.Enriched)
	})

	t.Run("Table Forces Enrichment", func(t *testing.T) {
		llm := &stubLLM{response: validSummary}
		e := NewEnricher(llm, nil)

		c := chunk.Chunk{
			Text: "tiny text near a table",
			Elements: []partition.Element{
				{Kind: partition.KindText, Text: "tiny text near a table"},
				{Kind: partition.KindTable, Text: "a b", TableHTML: "<table></table>"},
			},
		}
		got := e.Enrich(context.Background(), c, partition.SourceFile)

		assert.Equal(t, 1, llm.calls)
		assert.True(t, got.Enriched)
		assert.Equal(t, []string{"<table></table>"}, got.Original.Tables)
	})
}

func TestEnrichAllConcurrencyBound(t *testing.T) {
	var inFlight, peak int64
	llm := &stubLLM{response: validSummary}
	llm.onInvoke = func() {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
	}

	e := NewEnricher(llm, nil)
	longText := strings.Repeat("word ", 300)

	chunks := make([]chunk.Chunk, 20)
	for i := range chunks {
		chunks[i] = bigChunk(longText)
	}

	results, err := e.EnrichAll(context.Background(), chunks, partition.SourceFile)
	require.NoError(t, err)

	assert.Len(t, results, 20)
	assert.Equal(t, 20, llm.calls)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(5))
}

type recordingReporter struct {
	mu    sync.Mutex
	calls [][2]int
}

func (r *recordingReporter) ReportProgress(_ context.Context, current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, [2]int{current, total})
}

func TestEnrichAllProgressReporting(t *testing.T) {
	llm := &stubLLM{response: validSummary}
	reporter := &recordingReporter{}
	e := NewEnricher(llm, reporter)

	chunks := make([]chunk.Chunk, 7)
	for i := range chunks {
		chunks[i] = bigChunk("short")
	}

	results, err := e.EnrichAll(context.Background(), chunks, partition.SourceFile)
	require.NoError(t, err)
	assert.Len(t, results, 7)

	var sawFinal bool
	for _, c := range reporter.calls {
		assert.Equal(t, 7, c[1])
		if c[0] == 7 {
			sawFinal = true
		}
	}
	assert.True(t, sawFinal, "final chunk must always be reported")
}

func TestEnrichAllPreservesOrder(t *testing.T) {
	llm := &stubLLM{response: validSummary}
	e := NewEnricher(llm, nil)

	chunks := []chunk.Chunk{bigChunk("first"), bigChunk("second"), bigChunk("third")}
	results, err := e.EnrichAll(context.Background(), chunks, partition.SourceFile)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Content)
	assert.Equal(t, "second", results[1].Content)
	assert.Equal(t, "third", results[2].Content)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		reason  string
	}{
		{"Valid", validSummary, ""},
		{"Too Short", "SEARCH INDEX:", "too short"},
		{"Greeting", "Hello! How can I assist you with analyzing this document section today?", "generic greeting"},
		{"Garbled", "a b c d e f g h i j k l m n o p q r s t u v w x y z " + strings.Repeat("a ", 30), "too many single characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reason, Validate(tt.summary))
		})
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "some Text here", CleanText("  some\n\nText   here "))
	assert.Equal(t, "camel Case", CleanText("camelCase"))
}
