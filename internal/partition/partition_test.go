package partition_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
	"github.com/cs425-g28/graphbsp/internal/partition"
)

// TestOwnerAgreesWithLocalRange checks that every vertex id in [0, N)
// is owned by exactly one rank, and that rank's own Partition reports
// the id inside its [LocalStart, LocalEnd) range.
func TestOwnerAgreesWithLocalRange(t *testing.T) {
	const size = 4
	const n = bsptypes.VertexId(11) // not evenly divisible by size

	parts := make([]*partition.Partition, size)
	for r := 0; r < size; r++ {
		p, err := partition.New(r, size, n)
		require.NoError(t, err)
		parts[r] = p
	}

	for vid := bsptypes.VertexId(0); vid < n; vid++ {
		owner := partition.Owner(vid, size, n)
		require.GreaterOrEqual(t, owner, 0)
		require.Less(t, owner, size)

		p := parts[owner]
		require.True(t, vid >= p.LocalStart() && vid < p.LocalEnd(),
			"vertex %d claimed by rank %d but outside its range [%d,%d)", vid, owner, p.LocalStart(), p.LocalEnd())
	}
}

// TestLocalCountsSumToN checks that every rank's LocalCount sums to N
// and that no two ranks' counts differ by more than one vertex.
func TestLocalCountsSumToN(t *testing.T) {
	const size = 3
	const n = bsptypes.VertexId(10)

	total := 0
	counts := make([]int, size)
	for r := 0; r < size; r++ {
		p, err := partition.New(r, size, n)
		require.NoError(t, err)
		counts[r] = p.LocalCount()
		total += counts[r]
	}
	require.Equal(t, int(n), total)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			require.LessOrEqual(t, abs(counts[i]-counts[j]), 1)
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// TestCSRSortedAscending checks that after Freeze, every local
// adjacency list is sorted ascending by destination.
func TestCSRSortedAscending(t *testing.T) {
	p, err := partition.New(0, 1, 5)
	require.NoError(t, err)

	require.NoError(t, p.AddEdge(bsptypes.Edge{From: 0, To: 3}))
	require.NoError(t, p.AddEdge(bsptypes.Edge{From: 0, To: 1}))
	require.NoError(t, p.AddEdge(bsptypes.Edge{From: 0, To: 4}))
	p.Freeze()

	nbrs := p.Neighbors(0)
	require.Equal(t, []bsptypes.VertexId{1, 3, 4}, nbrs)
}

// TestCSRLayoutMatchesExpectedShape diffs the full row-pointer and
// column-index arrays against a hand-built expectation, using go-cmp
// for a structural diff rather than index-by-index assertions.
func TestCSRLayoutMatchesExpectedShape(t *testing.T) {
	p, err := partition.New(0, 1, 6)
	require.NoError(t, err)
	require.NoError(t, p.AddEdge(bsptypes.Edge{From: 0, To: 5}))
	require.NoError(t, p.AddEdge(bsptypes.Edge{From: 0, To: 2}))
	require.NoError(t, p.AddEdge(bsptypes.Edge{From: 2, To: 3}))
	p.Freeze()

	wantRowPtr := []uint64{0, 2, 2, 3, 3, 3, 3}
	wantColInd := []bsptypes.VertexId{2, 5, 3}

	if diff := cmp.Diff(wantRowPtr, p.RowPtr()); diff != "" {
		t.Errorf("RowPtr mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantColInd, p.ColInd()); diff != "" {
		t.Errorf("ColInd mismatch (-want +got):\n%s", diff)
	}
}

// TestAddEdgeRejectsUnownedSource checks that AddEdge refuses a source
// vertex outside this rank's local range.
func TestAddEdgeRejectsUnownedSource(t *testing.T) {
	p, err := partition.New(1, 2, 10)
	require.NoError(t, err)

	err = p.AddEdge(bsptypes.Edge{From: 0, To: 1})
	require.Error(t, err)
}

// TestDefaultEdgeWeight checks the default weight of 1.0 for
// unweighted edges.
func TestDefaultEdgeWeight(t *testing.T) {
	p, err := partition.New(0, 1, 3)
	require.NoError(t, err)
	require.NoError(t, p.AddEdge(bsptypes.Edge{From: 0, To: 1}))
	p.Freeze()

	require.Equal(t, []bsptypes.EdgeWeight{1.0}, p.Weights(0))
}
