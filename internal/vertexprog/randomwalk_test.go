package vertexprog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
	"github.com/cs425-g28/graphbsp/internal/transport"
	"github.com/cs425-g28/graphbsp/internal/vertexprog"
	"github.com/cs425-g28/graphbsp/internal/wire"
)

// TestRandomWalkCycleSanity checks that on a 4-cycle 0->1->2->3->0,
// `rw 5 2` yields every walk's path of length 6,
// every consecutive pair an actual edge, and path[0] equal to the
// walk's start vertex.
func TestRandomWalkCycleSanity(t *testing.T) {
	edges := []bsptypes.Edge{{From: 0, To: 1}, {From: 1, To: 2}, {From: 2, To: 3}, {From: 3, To: 0}}
	adj := map[bsptypes.VertexId]bsptypes.VertexId{0: 1, 1: 2, 2: 3, 3: 0}

	for _, size := range []int{1, 2} {
		size := size
		t.Run("", func(t *testing.T) {
			parts := buildGraph(t, 4, edges, size)
			groups := transport.NewLocalGroup(size)

			results := make([][][]wire.Walk, size)
			g, ctx := errgroup.WithContext(context.Background())
			for r := 0; r < size; r++ {
				r := r
				g.Go(func() error {
					res, err := vertexprog.RunRandomWalk(ctx, groups[r], parts[r], 5, 2, nil)
					if err != nil {
						return err
					}
					results[r] = res.Active
					return nil
				})
			}
			require.NoError(t, g.Wait())

			count := 0
			for _, perRank := range results {
				for _, perVertex := range perRank {
					for _, w := range perVertex {
						count++
						require.Len(t, w.Path, 6)
						require.Equal(t, w.Start, w.Path[0])
						for i := 1; i < len(w.Path); i++ {
							require.Equal(t, adj[w.Path[i-1]], w.Path[i], "edge %d->%d not in cycle", w.Path[i-1], w.Path[i])
						}
					}
				}
			}
			require.Equal(t, 4*2, count) // numWalks per vertex * 4 vertices, none lost
		})
	}
}
