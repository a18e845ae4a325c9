package chunk

import (
	"log/slog"
	"strings"

	"tessera/backend/internal/partition"
)

// overlapThreshold is the fraction of an element's long tokens that must
// appear in a chunk's text for a table or image to be considered part of it.
const overlapThreshold = 0.3

// minTokenLength filters out short connective words before overlap scoring.
const minTokenLength = 3

// MapStats reports how many tables and images were recovered across all
// chunks versus how many the partitioner found. A shortfall indicates
// incomplete recovery, not failure.
type MapStats struct {
	TablesFound  int `json:"tables_found"`
	TablesMapped int `json:"tables_mapped"`
	ImagesFound  int `json:"images_found"`
	ImagesMapped int `json:"images_mapped"`
}

func (s MapStats) Complete() bool {
	return s.TablesMapped >= s.TablesFound && s.ImagesMapped >= s.ImagesFound
}

// MapElements recovers, for every chunk, the set of source elements it was
// built from. Chunks that already carry a native element manifest are
// trusted as-is. For the rest, plain text elements match by literal
// substring; tables and images match by long-token overlap, then by
// positional bucketing for payload-only elements. Positional fallback is
// skipped for scraped pages, where element position does not correlate with
// chunk order. Recovered sets are deduplicated by element identity.
func MapElements(chunks []Chunk, elements []partition.Element, source partition.SourceKind) MapStats {
	for i := range chunks {
		if len(chunks[i].Elements) > 0 {
			chunks[i].Elements = dedupe(chunks[i].Elements)
			continue
		}
		chunks[i].Elements = dedupe(matchHeuristic(chunks[i], i, chunks, elements, source))
	}

	stats := MapStats{}
	for _, el := range elements {
		switch el.Kind {
		case partition.KindTable:
			stats.TablesFound++
		case partition.KindImage:
			stats.ImagesFound++
		}
	}
	for _, c := range chunks {
		for _, el := range c.Elements {
			switch el.Kind {
			case partition.KindTable:
				stats.TablesMapped++
			case partition.KindImage:
				stats.ImagesMapped++
			}
		}
	}

	if !stats.Complete() {
		slog.Warn("element recovery incomplete",
			"tables_mapped", stats.TablesMapped, "tables_found", stats.TablesFound,
			"images_mapped", stats.ImagesMapped, "images_found", stats.ImagesFound)
	}
	return stats
}

func matchHeuristic(c Chunk, chunkIdx int, chunks []Chunk, elements []partition.Element, source partition.SourceKind) []partition.Element {
	var matched []partition.Element
	for elemIdx, el := range elements {
		switch el.Kind {
		case partition.KindTable, partition.KindImage:
			if tokenOverlapMatch(el.Text, c.Text) {
				matched = append(matched, el)
				continue
			}
			// Payload-only elements (images in particular) have no usable
			// text; assign by position within the document.
			if source == partition.SourceFile && positionalMatch(elemIdx, chunkIdx, len(elements), len(chunks)) {
				matched = append(matched, el)
			}
		default:
			if el.Text != "" && strings.Contains(c.Text, el.Text) {
				matched = append(matched, el)
			}
		}
	}
	return matched
}

// tokenOverlapMatch reports whether more than 30% of the element's tokens
// longer than three characters appear in the chunk text.
func tokenOverlapMatch(elementText, chunkText string) bool {
	if len(elementText) <= 5 {
		return false
	}
	var tokens []string
	for _, tok := range strings.Fields(elementText) {
		if len(tok) > minTokenLength {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return false
	}
	hits := 0
	for _, tok := range tokens {
		if strings.Contains(chunkText, tok) {
			hits++
		}
	}
	return float64(hits)/float64(len(tokens)) > overlapThreshold
}

// positionalMatch buckets the element index into an even division of the
// element count across chunks.
func positionalMatch(elemIdx, chunkIdx, totalElements, totalChunks int) bool {
	if totalChunks == 0 {
		return false
	}
	perChunk := float64(totalElements) / float64(totalChunks)
	start := int(float64(chunkIdx) * perChunk)
	end := int(float64(chunkIdx+1) * perChunk)
	return start <= elemIdx && elemIdx < end
}

type elementKey struct {
	kind  partition.Kind
	text  string
	table string
	image string
	page  int
}

func keyOf(el partition.Element) elementKey {
	k := elementKey{kind: el.Kind, text: el.Text, table: el.TableHTML, image: el.ImageBase64, page: -1}
	if el.Page != nil {
		k.page = *el.Page
	}
	return k
}

func dedupe(elements []partition.Element) []partition.Element {
	seen := make(map[elementKey]bool, len(elements))
	unique := elements[:0:0]
	for _, el := range elements {
		k := keyOf(el)
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, el)
	}
	return unique
}
