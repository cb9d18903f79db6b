package transport_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cs425-g28/graphbsp/internal/transport"
)

func TestLocalGroupBarrier(t *testing.T) {
	const size = 4
	groups := transport.NewLocalGroup(size)

	g, ctx := errgroup.WithContext(context.Background())
	for _, grp := range groups {
		grp := grp
		g.Go(func() error { return grp.Barrier(ctx) })
	}
	require.NoError(t, g.Wait())
}

func TestLocalGroupAllreduceSumInt32(t *testing.T) {
	const size = 3
	groups := transport.NewLocalGroup(size)

	results := make([]int32, size)
	g, ctx := errgroup.WithContext(context.Background())
	for r, grp := range groups {
		r, grp := r, grp
		g.Go(func() error {
			res, err := grp.AllreduceSumInt32(ctx, int32(r+1))
			results[r] = res
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, r := range results {
		require.Equal(t, int32(6), r) // 1+2+3
	}
}

func TestLocalGroupBroadcast(t *testing.T) {
	const size = 3
	groups := transport.NewLocalGroup(size)

	results := make([][]byte, size)
	g, ctx := errgroup.WithContext(context.Background())
	for r, grp := range groups {
		r, grp := r, grp
		g.Go(func() error {
			var payload []byte
			if r == 0 {
				payload = []byte("hello")
			}
			res, err := grp.Broadcast(ctx, payload, 0)
			results[r] = res
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, r := range results {
		require.Equal(t, []byte("hello"), r)
	}
}

func TestLocalGroupAlltoallv(t *testing.T) {
	const size = 3
	groups := transport.NewLocalGroup(size)

	results := make([][][]byte, size)
	g, ctx := errgroup.WithContext(context.Background())
	for r, grp := range groups {
		r, grp := r, grp
		g.Go(func() error {
			send := make([][]byte, size)
			for dst := 0; dst < size; dst++ {
				send[dst] = []byte{byte(r), byte(dst)}
			}
			res, err := grp.Alltoallv(ctx, send)
			results[r] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	for dst := 0; dst < size; dst++ {
		for src := 0; src < size; src++ {
			require.Equal(t, []byte{byte(src), byte(dst)}, results[dst][src])
		}
	}
}
