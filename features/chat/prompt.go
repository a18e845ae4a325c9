package chat

import (
	"fmt"
	"strings"

	"tessera/backend/internal/retrieval"
)

var divider = strings.Repeat("=", 80)

// buildGroundedPrompt assembles the system prompt that pins the model to
// the retrieved context. The answer may draw on nothing else; when the
// context is silent the model must say so.
func buildGroundedPrompt(ctx retrieval.Context, query string) string {
	var b strings.Builder

	b.WriteString("You are a helpful AI assistant that answers questions based solely on the provided context. ")
	b.WriteString("Your task is to provide accurate, detailed answers using ONLY the information available in the context below.\n\n")
	b.WriteString("IMPORTANT RULES:\n")
	b.WriteString("- Only answer based on the provided context (texts, tables, and images)\n")
	b.WriteString("- If the answer cannot be found in the context, respond with: 'I don't have enough information in the provided context to answer that question.'\n")
	b.WriteString("- Do not use external knowledge or make assumptions beyond what's explicitly stated\n")
	b.WriteString("- When referencing information, be specific and cite relevant parts of the context\n")
	b.WriteString("- Synthesize information from texts, tables, and images to provide comprehensive answers\n\n")

	if len(ctx.Texts) > 0 {
		b.WriteString(divider + "\n")
		b.WriteString("CONTEXT DOCUMENTS\n")
		b.WriteString(divider + "\n\n")
		for i, text := range ctx.Texts {
			fmt.Fprintf(&b, "--- Document Chunk %d ---\n", i+1)
			b.WriteString(strings.TrimSpace(text) + "\n\n")
		}
	}

	if len(ctx.Tables) > 0 {
		b.WriteString("\n" + divider + "\n")
		b.WriteString("RELATED TABLES\n")
		b.WriteString(divider + "\n")
		b.WriteString("The following tables contain structured data that may be relevant to your answer. ")
		b.WriteString("Analyze the table contents carefully.\n\n")
		for i, table := range ctx.Tables {
			fmt.Fprintf(&b, "--- Table %d ---\n", i+1)
			b.WriteString(table + "\n\n")
		}
	}

	if len(ctx.Images) > 0 {
		b.WriteString("\n" + divider + "\n")
		b.WriteString("RELATED IMAGES\n")
		b.WriteString(divider + "\n")
		fmt.Fprintf(&b, "%d image(s) will be provided alongside the user's question. ", len(ctx.Images))
		b.WriteString("These images may contain diagrams, charts, figures, formulas, or other visual information. ")
		b.WriteString("Carefully analyze the visual content when formulating your response. ")
		b.WriteString("The images are part of the retrieved context and should be used to answer the question.\n\n")
	}

	b.WriteString(divider + "\n")
	b.WriteString("Based on all the context provided above (documents, tables, and images), ")
	b.WriteString("please answer the user's question accurately and comprehensively.\n")
	b.WriteString(divider + "\n\n")

	b.WriteString("Question: " + query)
	return b.String()
}
