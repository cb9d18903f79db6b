package vertexprog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
	"github.com/cs425-g28/graphbsp/internal/transport"
	"github.com/cs425-g28/graphbsp/internal/vertexprog"
)

// TestLPAFourCliqueAndIsolatedVertex checks a 4-clique over
// {0,1,2,3} plus an isolated vertex 4. After >=3 rounds every
// clique vertex's label must converge to 0 (the lowest id, per the
// tie-break decision); vertex 4 keeps its own label.
func TestLPAFourCliqueAndIsolatedVertex(t *testing.T) {
	var edges []bsptypes.Edge
	for i := bsptypes.VertexId(0); i < 4; i++ {
		for j := bsptypes.VertexId(0); j < 4; j++ {
			if i != j {
				edges = append(edges, bsptypes.Edge{From: i, To: j})
			}
		}
	}

	for _, size := range []int{1, 2} {
		size := size
		t.Run("", func(t *testing.T) {
			parts := buildGraph(t, 5, edges, size)
			groups := transport.NewLocalGroup(size)

			got := make([]bsptypes.VertexId, 5)
			g, ctx := errgroup.WithContext(context.Background())
			for r := 0; r < size; r++ {
				r := r
				g.Go(func() error {
					res, err := vertexprog.RunLPA(ctx, groups[r], parts[r], 5, nil)
					if err != nil {
						return err
					}
					for i, lbl := range res.Label {
						got[int(parts[r].GlobalID(i))] = lbl
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			for v := bsptypes.VertexId(0); v < 4; v++ {
				require.Equal(t, bsptypes.VertexId(0), got[v], "clique vertex %d", v)
			}
			require.Equal(t, bsptypes.VertexId(4), got[4])
		})
	}
}
