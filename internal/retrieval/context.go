package retrieval

import (
	"context"
	"fmt"
)

// unknownFilename is used when a chunk's owning document cannot be
// resolved.
const unknownFilename = "Unknown Document"

// DocumentLookup resolves document ids to filenames in one batched call.
type DocumentLookup interface {
	Filenames(ctx context.Context, documentIDs []string) (map[string]string, error)
}

// Citation points a reader back to the exact chunk an answer drew from.
type Citation struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Page       int    `json:"page"`
}

// Context is the payload handed to prompt assembly: raw chunk texts, image
// and table payloads, and one citation per chunk in fused order.
type Context struct {
	Texts     []string
	Images    []string
	Tables    []string
	Citations []Citation
}

// BuildContext converts the final ranked chunk list into prompt payloads
// and citations. Filenames for all distinct owning documents are resolved
// in a single lookup.
func BuildContext(ctx context.Context, lookup DocumentLookup, chunks []Chunk) (Context, error) {
	if len(chunks) == 0 {
		return Context{}, nil
	}

	seen := make(map[string]bool)
	var distinct []string
	for _, c := range chunks {
		if c.DocumentID != "" && !seen[c.DocumentID] {
			seen[c.DocumentID] = true
			distinct = append(distinct, c.DocumentID)
		}
	}

	filenames := map[string]string{}
	if len(distinct) > 0 {
		resolved, err := lookup.Filenames(ctx, distinct)
		if err != nil {
			return Context{}, fmt.Errorf("resolve filenames: %w", err)
		}
		filenames = resolved
	}

	var out Context
	for _, c := range chunks {
		if c.OriginalText != "" {
			out.Texts = append(out.Texts, c.OriginalText)
		}
		out.Images = append(out.Images, c.Images...)
		out.Tables = append(out.Tables, c.Tables...)

		filename, ok := filenames[c.DocumentID]
		if !ok {
			filename = unknownFilename
		}
		out.Citations = append(out.Citations, Citation{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Filename:   filename,
			Page:       c.Page,
		})
	}
	return out, nil
}
