package enrich

import (
	"fmt"
	"strings"
)

// buildPrompt asks for a fixed-format search index over the chunk's text
// and tables. The rigid format keeps responses machine-checkable; anything
// that drifts into conversation is rejected by Validate.
func buildPrompt(text string, tables []string) string {
	var b strings.Builder

	b.WriteString("You are analyzing a section from a document. Create a structured, searchable summary.\n\n")
	b.WriteString("DOCUMENT SECTION:\n")
	b.WriteString(text)
	b.WriteString("\n")

	if len(tables) > 0 {
		b.WriteString("\nTABLES (HTML format):\n")
		for i, table := range tables {
			fmt.Fprintf(&b, "Table %d:\n%s\n\n", i+1, table)
		}
	}

	b.WriteString(`
TASK:
Create a comprehensive search index in the following EXACT format:

SEARCH INDEX:

KEY QUESTIONS:
- What [question about main topic]?
- How [question about process/method]?
- Why [question about reasoning]?
- When [question about timing/sequence]?
- Who [question about people/entities]?

KEYWORDS:
- Numbers: [all specific numbers, dates, percentages]
- Technical Terms: [all technical concepts]
- Named Entities: [names, organizations, locations]
- Key Concepts: [main ideas and themes]

TABLE DATA (if tables present):
- Columns: [column names and meanings]
- Key Values: [notable metrics and numbers]
- Relationships: [relationships between data points]

MAIN FINDINGS:
- [summarize key conclusions]
- [describe processes or methods]
- [note important insights]

CRITICAL RULES:
1. Start IMMEDIATELY with "SEARCH INDEX:"
2. Use ONLY the format shown above
3. Include ALL specific data (numbers, dates, names)
4. NO generic greetings or questions back
5. NO markdown headers like ### or **
6. Be comprehensive but concise

Begin your response now:`)

	return b.String()
}
