package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"tessera/backend/internal/partition"
)

func TestMapElements(t *testing.T) {
	t.Run("Native Manifest Is Trusted", func(t *testing.T) {
		el := textEl("belongs here")
		chunks := []Chunk{{Text: "something else entirely", Elements: []partition.Element{el}}}

		stats := MapElements(chunks, []partition.Element{el}, partition.SourceFile)

		assert.Len(t, chunks[0].Elements, 1)
		assert.True(t, stats.Complete())
	})

	t.Run("Text Element Matches By Substring", func(t *testing.T) {
		el := textEl("the quick brown fox")
		chunks := []Chunk{{Text: "prefix " + el.Text + " suffix"}}

		MapElements(chunks, []partition.Element{el}, partition.SourceFile)

		assert.Len(t, chunks[0].Elements, 1)
		assert.Equal(t, el.Text, chunks[0].Elements[0].Text)
	})

	t.Run("Table Recovered By Token Overlap Without Literal Match", func(t *testing.T) {
		// The table text never appears verbatim in the chunk, but most of
		// its long tokens do.
		table := partition.Element{
			Kind: partition.KindTable,
			Text: "revenue expenses quarter margin",
		}
		chunks := []Chunk{{
			Text: "The quarter closed with record revenue while expenses held steady and margin improved.",
		}}

		stats := MapElements(chunks, []partition.Element{table}, partition.SourceFile)

		assert.Len(t, chunks[0].Elements, 1)
		assert.Equal(t, partition.KindTable, chunks[0].Elements[0].Kind)
		assert.Equal(t, 1, stats.TablesMapped)
	})

	t.Run("Low Overlap Table Not Matched By Text", func(t *testing.T) {
		table := partition.Element{
			Kind: partition.KindTable,
			Text: "alpha bravo charlie delta echo foxtrot golf hotel india juliet",
		}
		chunks := []Chunk{
			{Text: "completely unrelated prose about gardening"},
			{Text: "more unrelated prose about cooking"},
		}

		// Positional fallback still buckets it into exactly one chunk for
		// file sources.
		MapElements(chunks, []partition.Element{table}, partition.SourceFile)
		assert.Empty(t, chunks[0].Elements)
		assert.Len(t, chunks[1].Elements, 1)
	})

	t.Run("Positional Fallback Skipped For Scraped Pages", func(t *testing.T) {
		image := partition.Element{Kind: partition.KindImage}
		chunks := []Chunk{{Text: "page text"}}

		stats := MapElements(chunks, []partition.Element{image}, partition.SourceURL)

		assert.Empty(t, chunks[0].Elements)
		assert.Equal(t, 1, stats.ImagesFound)
		assert.Equal(t, 0, stats.ImagesMapped)
		assert.False(t, stats.Complete())
	})

	t.Run("Image Without Text Bucketed By Position", func(t *testing.T) {
		elements := []partition.Element{
			textEl("first half " + strings.Repeat("a", 20)),
			{Kind: partition.KindImage, ImageBase64: "cGF5bG9hZA=="},
			textEl("second half " + strings.Repeat("b", 20)),
			textEl("more second half"),
		}
		chunks := []Chunk{
			{Text: elements[0].Text},
			{Text: elements[2].Text + "\n\n" + elements[3].Text},
		}

		MapElements(chunks, elements, partition.SourceFile)

		var imageChunks int
		for _, c := range chunks {
			for _, el := range c.Elements {
				if el.Kind == partition.KindImage {
					imageChunks++
				}
			}
		}
		assert.Equal(t, 1, imageChunks)
	})

	t.Run("Duplicates Eliminated By Identity", func(t *testing.T) {
		// An element matching both by substring and overlap must appear once.
		el := textEl("shared sentence about results")
		chunks := []Chunk{{
			Text:     "shared sentence about results",
			Elements: []partition.Element{el, el},
		}}

		MapElements(chunks, []partition.Element{el}, partition.SourceFile)

		assert.Len(t, chunks[0].Elements, 1)
	})
}

func TestTokenOverlapMatch(t *testing.T) {
	t.Run("Exactly At Threshold Is Not A Match", func(t *testing.T) {
		// 3 of 10 long tokens present: ratio 0.3, threshold is strict.
		element := "tok1x tok2x tok3x tok4x tok5x tok6x tok7x tok8x tok9x tok10"
		chunkText := "tok1x tok2x tok3x"
		assert.False(t, tokenOverlapMatch(element, chunkText))
	})

	t.Run("Above Threshold Matches", func(t *testing.T) {
		element := "tok1x tok2x tok3x tok4x tok5x"
		chunkText := "tok1x tok2x"
		assert.True(t, tokenOverlapMatch(element, chunkText))
	})

	t.Run("Short Or Empty Text Never Matches", func(t *testing.T) {
		assert.False(t, tokenOverlapMatch("", "anything"))
		assert.False(t, tokenOverlapMatch("ab cd", "ab cd"))
	})
}
