package search

import (
	"math"
	"testing"

	"github.com/narau/narau/internal/keyword"
	"github.com/narau/narau/internal/vector"
)

func TestFuseRRF_BothListsBeatOne(t *testing.T) {
	dense := []*vector.Result{
		{ChunkID: "a", Score: 0.9},
		{ChunkID: "b", Score: 0.8},
	}
	sparse := []*keyword.Result{
		{ChunkID: "b", Score: 5.0},
		{ChunkID: "c", Score: 4.0},
	}
	fused := fuseRRF(dense, sparse, 60)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused hits, got %d", len(fused))
	}
	// b appears in both lists, so it outranks a and c despite lower positions
	if fused[0].ChunkID != "b" {
		t.Errorf("expected b first, got %s", fused[0].ChunkID)
	}
	want := 1.0/62 + 1.0/61
	if math.Abs(fused[0].Score-want) > 1e-12 {
		t.Errorf("expected score %f, got %f", want, fused[0].Score)
	}
}

func TestFuseRRF_RawScoresDoNotMix(t *testing.T) {
	// sparse scores are orders of magnitude above dense ones; only rank matters
	dense := []*vector.Result{{ChunkID: "a", Score: 0.01}}
	sparse := []*keyword.Result{{ChunkID: "b", Score: 9000}}
	fused := fuseRRF(dense, sparse, 60)
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused hits, got %d", len(fused))
	}
	if fused[0].Score != fused[1].Score {
		t.Errorf("rank-1 hits from each leg should score equally, got %f vs %f", fused[0].Score, fused[1].Score)
	}
	// equal scores: dense-ranked chunk wins the tie
	if fused[0].ChunkID != "a" {
		t.Errorf("expected dense hit to win tie, got %s", fused[0].ChunkID)
	}
}

func TestFuseRRF_Deterministic(t *testing.T) {
	dense := []*vector.Result{
		{ChunkID: "x", Score: 0.5},
		{ChunkID: "y", Score: 0.4},
		{ChunkID: "z", Score: 0.3},
	}
	sparse := []*keyword.Result{
		{ChunkID: "z", Score: 2},
		{ChunkID: "x", Score: 1},
	}
	first := fuseRRF(dense, sparse, 60)
	for i := 0; i < 10; i++ {
		again := fuseRRF(dense, sparse, 60)
		for j := range first {
			if first[j].ChunkID != again[j].ChunkID {
				t.Fatalf("run %d: order changed at %d: %s vs %s", i, j, first[j].ChunkID, again[j].ChunkID)
			}
		}
	}
}

func TestFuseRRF_SparseOnlyTieBreaksByID(t *testing.T) {
	sparse := []*keyword.Result{
		{ChunkID: "m", Score: 3},
	}
	dense := []*vector.Result{}
	fused := fuseRRF(dense, sparse, 60)
	if len(fused) != 1 || fused[0].ChunkID != "m" {
		t.Fatalf("unexpected fusion of single sparse list: %+v", fused)
	}

	// two sparse-only chunks with manufactured equal scores sort by ID
	a := fuseRRF(nil, []*keyword.Result{{ChunkID: "b"}, {ChunkID: "a"}}, 60)
	if a[0].ChunkID != "b" {
		t.Errorf("rank order must hold before ID order, got %s first", a[0].ChunkID)
	}
}
