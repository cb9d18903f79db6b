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

// TestCCTwoComponents checks three disjoint bidirectional pairs
// {0,1}, {2,3}, {4,5}; after convergence cc = [0,0,2,2,4,4].
func TestCCThreeComponents(t *testing.T) {
	edges := []bsptypes.Edge{
		{From: 0, To: 1}, {From: 1, To: 0},
		{From: 2, To: 3}, {From: 3, To: 2},
		{From: 4, To: 5}, {From: 5, To: 4},
	}

	for _, size := range []int{1, 3} {
		size := size
		t.Run("", func(t *testing.T) {
			parts := buildGraph(t, 6, edges, size)
			groups := transport.NewLocalGroup(size)

			got := make([]bsptypes.VertexId, 6)
			g, ctx := errgroup.WithContext(context.Background())
			for r := 0; r < size; r++ {
				r := r
				g.Go(func() error {
					res, err := vertexprog.RunCC(ctx, groups[r], parts[r], 20, nil)
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

			want := []bsptypes.VertexId{0, 0, 2, 2, 4, 4}
			require.Equal(t, want, got)
		})
	}
}
