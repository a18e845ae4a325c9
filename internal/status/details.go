package status

import "tessera/backend/internal/chunk"

// PartitioningDetail records what the partitioner extracted.
type PartitioningDetail struct {
	ElementsFound map[string]int `json:"elements_found,omitempty"`
	TotalElements int            `json:"total_elements"`
}

// ChunkingDetail records the chunker's output and its element recovery
// tally.
type ChunkingDetail struct {
	TotalChunks int             `json:"total_chunks"`
	Mapping     *chunk.MapStats `json:"mapping,omitempty"`
}

// SummarizingDetail tracks enrichment progress.
type SummarizingDetail struct {
	CurrentChunk int `json:"current_chunk"`
	TotalChunks  int `json:"total_chunks"`
}

// Details is the typed per-stage diagnostic record attached to a document.
// Stages fill in their own sub-struct; Merge folds a patch into the stored
// value without clobbering other stages' fields.
type Details struct {
	Partitioning *PartitioningDetail `json:"partitioning,omitempty"`
	Chunking     *ChunkingDetail     `json:"chunking,omitempty"`
	Summarizing  *SummarizingDetail  `json:"summarizing,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// Merge returns the receiver with every non-empty field of patch applied.
// Existing fields absent from the patch are preserved.
func (d Details) Merge(patch Details) Details {
	if patch.Partitioning != nil {
		d.Partitioning = patch.Partitioning
	}
	if patch.Chunking != nil {
		d.Chunking = patch.Chunking
	}
	if patch.Summarizing != nil {
		d.Summarizing = patch.Summarizing
	}
	if patch.Error != "" {
		d.Error = patch.Error
	}
	return d
}
