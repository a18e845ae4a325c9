package chunk

import (
	"strings"
	"unicode/utf8"

	"tessera/backend/internal/partition"
)

// Options mirror the title-based chunking thresholds used by the ingestion
// pipeline. Values are character counts.
type Options struct {
	// MaxCharacters is the hard ceiling for a chunk's text length.
	MaxCharacters int
	// NewAfterNChars closes a chunk at the next Title boundary once exceeded.
	NewAfterNChars int
	// CombineUnderNChars merges chunks shorter than this into their predecessor.
	CombineUnderNChars int
}

func DefaultOptions() Options {
	return Options{
		MaxCharacters:      3000,
		NewAfterNChars:     2400,
		CombineUnderNChars: 500,
	}
}

// Chunk is an ordered group of elements treated as one retrieval unit.
// Elements holds the recovered source elements; after Split it is the
// native manifest, after MapElements it may be heuristically recovered.
type Chunk struct {
	Text     string
	Elements []partition.Element
	Page     int
}

const separator = "\n\n"

// Split groups an ordered element sequence into chunks. Title elements are
// boundary candidates: a chunk is closed at a Title once its text exceeds
// NewAfterNChars, and unconditionally when appending an element would push
// it past MaxCharacters. An element whose own text exceeds MaxCharacters is
// hard-split so no produced chunk ever breaks the ceiling. A final pass
// merges undersized chunks into their predecessor. Element order is
// preserved and each produced chunk carries the elements it was built from.
func Split(elements []partition.Element, opts Options) []Chunk {
	if len(elements) == 0 {
		return nil
	}

	var (
		chunks   []Chunk
		curText  strings.Builder
		curElems []partition.Element
	)

	flush := func() {
		if curText.Len() == 0 && len(curElems) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Text:     curText.String(),
			Elements: curElems,
		})
		curText.Reset()
		curElems = nil
	}

	for _, el := range elements {
		textLen := len(el.Text)

		// An element longer than the ceiling cannot share a chunk with
		// anything; hard-split its text into max-sized segments. The
		// element stays attached to the chunk holding its first segment.
		if textLen > opts.MaxCharacters {
			flush()
			for i, seg := range splitText(el.Text, opts.MaxCharacters) {
				curText.WriteString(seg)
				if i == 0 {
					curElems = append(curElems, el)
				}
				flush()
			}
			continue
		}

		joined := curText.Len()
		if joined > 0 {
			joined += len(separator)
		}

		switch {
		case curText.Len() > 0 && joined+textLen > opts.MaxCharacters:
			flush()
		case el.Kind == partition.KindTitle && curText.Len() > opts.NewAfterNChars:
			flush()
		}

		if curText.Len() > 0 && textLen > 0 {
			curText.WriteString(separator)
		}
		curText.WriteString(el.Text)
		curElems = append(curElems, el)
	}
	flush()

	chunks = combineSmall(chunks, opts)

	for i := range chunks {
		chunks[i].Page = pageOf(chunks[i], i)
	}
	return chunks
}

// splitText slices text into segments no longer than max bytes. Segments
// break at a space near the boundary when one falls in the second half,
// and never inside a multi-byte rune.
func splitText(text string, max int) []string {
	var segs []string
	for len(text) > max {
		cut := max
		if idx := strings.LastIndexByte(text[:max], ' '); idx > max/2 {
			cut = idx + 1
		} else {
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		segs = append(segs, strings.TrimRight(text[:cut], " "))
		text = strings.TrimLeft(text[cut:], " ")
	}
	if text != "" {
		segs = append(segs, text)
	}
	return segs
}

// combineSmall merges chunks shorter than CombineUnderNChars into the
// previous chunk, as long as the result stays under the hard ceiling.
func combineSmall(chunks []Chunk, opts Options) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}
	merged := chunks[:1]
	for _, c := range chunks[1:] {
		prev := &merged[len(merged)-1]
		if len(c.Text) < opts.CombineUnderNChars &&
			len(prev.Text)+len(separator)+len(c.Text) <= opts.MaxCharacters {
			if prev.Text != "" && c.Text != "" {
				prev.Text += separator
			}
			prev.Text += c.Text
			prev.Elements = append(prev.Elements, c.Elements...)
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// pageOf returns the first element's page number, falling back to the
// 1-based chunk position when no element carries one.
func pageOf(c Chunk, index int) int {
	for _, el := range c.Elements {
		if el.Page != nil {
			return *el.Page
		}
	}
	return index + 1
}

// Content is a chunk split into its constituent payload kinds, ready for
// enrichment and storage.
type Content struct {
	Text   string
	Tables []string
	Images []string
	Types  []string
}

// Extract separates a chunk's recovered elements into text, table and image
// payloads. Table markup falls back to the element's raw text when no HTML
// was inferred. Images from scraped pages carry no binary payload and are
// skipped; their textual content is already part of the chunk text.
func Extract(c Chunk, source partition.SourceKind) Content {
	content := Content{
		Text:  c.Text,
		Types: []string{"text"},
	}

	for _, el := range c.Elements {
		switch el.Kind {
		case partition.KindTable:
			markup := el.TableHTML
			if markup == "" {
				markup = el.Text
			}
			content.Tables = append(content.Tables, markup)
			if !hasType(content.Types, "table") {
				content.Types = append(content.Types, "table")
			}
		case partition.KindImage:
			if source == partition.SourceURL || el.ImageBase64 == "" {
				continue
			}
			content.Images = append(content.Images, el.ImageBase64)
			if !hasType(content.Types, "image") {
				content.Types = append(content.Types, "image")
			}
		}
	}
	return content
}

func hasType(types []string, t string) bool {
	for _, have := range types {
		if have == t {
			return true
		}
	}
	return false
}
