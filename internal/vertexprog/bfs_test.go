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

// TestBFSLineGraph checks that on a 5-vertex line graph
// 0->1->2->3->4, bfs from 0 yields dist = [0,1,2,3,4].
func TestBFSLineGraph(t *testing.T) {
	edges := []bsptypes.Edge{{From: 0, To: 1}, {From: 1, To: 2}, {From: 2, To: 3}, {From: 3, To: 4}}

	for _, size := range []int{1, 2} {
		size := size
		t.Run("", func(t *testing.T) {
			parts := buildGraph(t, 5, edges, size)
			groups := transport.NewLocalGroup(size)

			got := make([]uint64, 5)
			g, ctx := errgroup.WithContext(context.Background())
			for r := 0; r < size; r++ {
				r := r
				g.Go(func() error {
					res, err := vertexprog.RunBFS(ctx, groups[r], parts[r], 0, 20, nil)
					if err != nil {
						return err
					}
					for i, d := range res.Dist {
						got[int(parts[r].GlobalID(i))] = d
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())
			require.Equal(t, []uint64{0, 1, 2, 3, 4}, got)
		})
	}
}
