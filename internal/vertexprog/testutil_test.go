package vertexprog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
	"github.com/cs425-g28/graphbsp/internal/partition"
)

// buildGraph splits n vertices and edges across size ranks, returning
// one frozen Partition per rank. Used by every scenario test in this
// package.
func buildGraph(t *testing.T, n bsptypes.VertexId, edges []bsptypes.Edge, size int) []*partition.Partition {
	t.Helper()
	parts := make([]*partition.Partition, size)
	for r := 0; r < size; r++ {
		p, err := partition.New(r, size, n)
		require.NoError(t, err)
		parts[r] = p
	}
	for _, e := range edges {
		owner := partition.Owner(e.From, size, n)
		require.NoError(t, parts[owner].AddEdge(e))
	}
	for _, p := range parts {
		p.Freeze()
	}
	return parts
}
