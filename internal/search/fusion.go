// Package search runs hybrid dense plus sparse retrieval over a course's
// knowledge base and fuses the two rankings with reciprocal rank fusion.
package search

import (
	"sort"

	"github.com/narau/narau/internal/keyword"
	"github.com/narau/narau/internal/vector"
)

// fusedHit carries a fused score and the ranks that produced it.
type fusedHit struct {
	ChunkID   string
	Score     float64
	denseRank int
}

// absentRank sorts chunks found only by the sparse leg after equally scored
// chunks found by the dense leg.
const absentRank = 1 << 30

// fuseRRF merges dense and sparse rankings with reciprocal rank fusion:
// each chunk scores the sum of 1/(rank+damping) over the lists it appears
// in, with 1-based ranks. Raw scores never mix across legs, only positions
// do. Ties break by dense rank, then chunk ID, so results are reproducible.
func fuseRRF(dense []*vector.Result, sparse []*keyword.Result, damping int) []*fusedHit {
	hits := make(map[string]*fusedHit)
	for i, r := range dense {
		hits[r.ChunkID] = &fusedHit{
			ChunkID:   r.ChunkID,
			Score:     1.0 / float64(i+1+damping),
			denseRank: i + 1,
		}
	}
	for i, r := range sparse {
		h, ok := hits[r.ChunkID]
		if !ok {
			h = &fusedHit{ChunkID: r.ChunkID, denseRank: absentRank}
			hits[r.ChunkID] = h
		}
		h.Score += 1.0 / float64(i+1+damping)
	}

	out := make([]*fusedHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].denseRank != out[j].denseRank {
			return out[i].denseRank < out[j].denseRank
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}
