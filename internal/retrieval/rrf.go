package retrieval

import (
	"errors"
	"fmt"
	"sort"
)

// rrfK is the standard Reciprocal Rank Fusion smoothing constant.
const rrfK = 60

var (
	ErrWeightCount    = errors.New("weight count does not match list count")
	ErrNegativeWeight = errors.New("weights must be non-negative")
)

// Fuse combines any number of ranked result lists into one ranked list
// using Reciprocal Rank Fusion. Each appearance of a chunk at 0-based rank
// r in list i contributes weights[i] * 1/(k+r+1) to its score; a chunk in
// several lists accumulates all contributions. When weights is nil, lists
// are weighted uniformly. Ties keep first-encountered order. The function
// is pure: it is used both for single-stage fusion and as the second stage
// of two-stage fusion.
func Fuse(lists [][]Chunk, weights []float64) ([]Chunk, error) {
	if len(lists) == 0 {
		return nil, nil
	}

	if weights == nil {
		weights = make([]float64, len(lists))
		for i := range weights {
			weights[i] = 1.0 / float64(len(lists))
		}
	}
	if len(weights) != len(lists) {
		return nil, fmt.Errorf("%w: %d weights for %d lists", ErrWeightCount, len(weights), len(lists))
	}
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("%w: weight %d is %f", ErrNegativeWeight, i, w)
		}
	}

	scores := make(map[string]float64)
	var ordered []Chunk // first-encountered order, one entry per unique chunk

	for listIdx, list := range lists {
		weight := weights[listIdx]
		for rank, c := range list {
			if c.ID == "" {
				continue
			}
			contribution := weight * (1.0 / float64(rrfK+rank+1))
			if _, seen := scores[c.ID]; !seen {
				ordered = append(ordered, c)
			}
			scores[c.ID] += contribution
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return scores[ordered[i].ID] > scores[ordered[j].ID]
	})

	for i := range ordered {
		ordered[i].Score = float32(scores[ordered[i].ID])
	}
	return ordered, nil
}
