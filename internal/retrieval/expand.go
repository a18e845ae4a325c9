package retrieval

import (
	"context"
	"fmt"
	"log/slog"
)

// VariationLLM generates a structured list of strings from a prompt pair.
// Implementations constrain the model to a list-of-strings response schema.
type VariationLLM interface {
	ListStrings(ctx context.Context, system, user string) ([]string, error)
}

// LLMExpander rewrites a query into alternative phrasings to improve
// recall before fusion. It never fails a request: any generation problem
// degrades to the original query alone.
type LLMExpander struct {
	llm VariationLLM
}

func NewLLMExpander(llm VariationLLM) *LLMExpander {
	return &LLMExpander{llm: llm}
}

// Expand returns up to total queries: the original plus total-1 generated
// paraphrases.
func (e *LLMExpander) Expand(ctx context.Context, query string, total int) []string {
	if total <= 1 {
		return []string{query}
	}

	system := fmt.Sprintf(
		"Generate %d alternative ways to phrase this question for document search. "+
			"Use different keywords and synonyms while maintaining the same intent. "+
			"Return exactly %d variations.", total-1, total-1)

	variations, err := e.llm.ListStrings(ctx, system, "Original query: "+query)
	if err != nil {
		slog.WarnContext(ctx, "query expansion failed, using original query only", "error", err)
		return []string{query}
	}

	if len(variations) > total-1 {
		variations = variations[:total-1]
	}
	return append([]string{query}, variations...)
}
