package transport

import (
	"context"
	"fmt"
	"sync"
)

// localHub is the shared rendezvous point for one group of in-process
// ranks. Every collective (barrier, allreduce, broadcast, alltoall,
// alltoallv) goes through the same generational-barrier mechanism:
// each rank deposits its contribution, the last arrival computes a
// per-rank result slice, and everyone wakes up and reads their slot.
//
// This relies on the BSP contract: every rank issues the
// same sequence of collectives in the same order, so a single shared
// generation counter is sufficient to pair up the n-th collective call
// across all n ranks without naming the operation.
type localHub struct {
	size int

	mu      sync.Mutex
	cond    *sync.Cond
	gen     int
	arrived int
	contrib []any
	results []any
	failed  error
}

func newLocalHub(size int) *localHub {
	h := &localHub{size: size, contrib: make([]any, size)}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// collective deposits contribution for rank, blocks until every rank
// has deposited, and returns this rank's slot of the result computed
// by reduceFn from the full contribution slice (indexed by rank).
func (h *localHub) collective(ctx context.Context, rank int, contribution any, reduceFn func([]any) ([]any, error)) (any, error) {
	h.mu.Lock()
	myGen := h.gen
	h.contrib[rank] = contribution
	h.arrived++
	if h.arrived == h.size {
		results, err := reduceFn(h.contrib)
		h.results = results
		h.failed = err
		h.contrib = make([]any, h.size)
		h.arrived = 0
		h.gen++
		h.cond.Broadcast()
	} else {
		for h.gen == myGen {
			h.cond.Wait()
		}
	}
	err := h.failed
	var res any
	if h.results != nil {
		res = h.results[rank]
	}
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return res, nil
}

// localGroup is one rank's handle onto a localHub.
type localGroup struct {
	hub  *localHub
	rank int
}

// NewLocalGroup builds size in-process ranks sharing one hub, suitable
// for engine/vertex-program tests and single-binary demo runs. Every
// returned Group must be used from a distinct goroutine: the BSP
// contract requires all ranks to be "in flight" concurrently for any
// collective to complete.
func NewLocalGroup(size int) []Group {
	hub := newLocalHub(size)
	groups := make([]Group, size)
	for r := 0; r < size; r++ {
		groups[r] = &localGroup{hub: hub, rank: r}
	}
	return groups
}

func (g *localGroup) Rank() int { return g.rank }
func (g *localGroup) Size() int { return g.hub.size }
func (g *localGroup) Close() error { return nil }

func (g *localGroup) Barrier(ctx context.Context) error {
	_, err := g.hub.collective(ctx, g.rank, nil, func(contrib []any) ([]any, error) {
		return make([]any, len(contrib)), nil
	})
	return wrapErr("barrier", g.rank, err)
}

func (g *localGroup) AllreduceSumInt32(ctx context.Context, v int32) (int32, error) {
	res, err := g.hub.collective(ctx, g.rank, v, func(contrib []any) ([]any, error) {
		var sum int32
		for _, c := range contrib {
			sum += c.(int32)
		}
		return fillAll(len(contrib), sum), nil
	})
	if err != nil {
		return 0, wrapErr("allreduce_sum_int32", g.rank, err)
	}
	return res.(int32), nil
}

func (g *localGroup) AllreduceSumFloat64(ctx context.Context, v float64) (float64, error) {
	res, err := g.hub.collective(ctx, g.rank, v, func(contrib []any) ([]any, error) {
		var sum float64
		for _, c := range contrib {
			sum += c.(float64)
		}
		return fillAll(len(contrib), sum), nil
	})
	if err != nil {
		return 0, wrapErr("allreduce_sum_float64", g.rank, err)
	}
	return res.(float64), nil
}

func (g *localGroup) AllreduceMaxInt32(ctx context.Context, v int32) (int32, error) {
	res, err := g.hub.collective(ctx, g.rank, v, func(contrib []any) ([]any, error) {
		max := contrib[0].(int32)
		for _, c := range contrib[1:] {
			if c.(int32) > max {
				max = c.(int32)
			}
		}
		return fillAll(len(contrib), max), nil
	})
	if err != nil {
		return 0, wrapErr("allreduce_max_int32", g.rank, err)
	}
	return res.(int32), nil
}

type broadcastContribution struct {
	root int
	buf  []byte
}

func (g *localGroup) Broadcast(ctx context.Context, buf []byte, root int) ([]byte, error) {
	res, err := g.hub.collective(ctx, g.rank, broadcastContribution{root: root, buf: buf}, func(contrib []any) ([]any, error) {
		r := contrib[0].(broadcastContribution).root
		if r < 0 || r >= len(contrib) {
			return nil, fmt.Errorf("broadcast: invalid root %d", r)
		}
		src := contrib[r].(broadcastContribution).buf
		out := make([]byte, len(src))
		copy(out, src)
		results := make([]any, len(contrib))
		for i := range results {
			cp := make([]byte, len(out))
			copy(cp, out)
			results[i] = cp
		}
		return results, nil
	})
	if err != nil {
		return nil, wrapErr("broadcast", g.rank, err)
	}
	return res.([]byte), nil
}

func (g *localGroup) Alltoall(ctx context.Context, counts []int32) ([]int32, error) {
	if len(counts) != g.hub.size {
		return nil, wrapErr("alltoall", g.rank, fmt.Errorf("counts has length %d, want %d", len(counts), g.hub.size))
	}
	res, err := g.hub.collective(ctx, g.rank, counts, func(contrib []any) ([]any, error) {
		n := len(contrib)
		results := make([]any, n)
		for dst := 0; dst < n; dst++ {
			recv := make([]int32, n)
			for src := 0; src < n; src++ {
				recv[src] = contrib[src].([]int32)[dst]
			}
			results[dst] = recv
		}
		return results, nil
	})
	if err != nil {
		return nil, wrapErr("alltoall", g.rank, err)
	}
	return res.([]int32), nil
}

func (g *localGroup) Alltoallv(ctx context.Context, send [][]byte) ([][]byte, error) {
	if len(send) != g.hub.size {
		return nil, wrapErr("alltoallv", g.rank, fmt.Errorf("send has length %d, want %d", len(send), g.hub.size))
	}
	res, err := g.hub.collective(ctx, g.rank, send, func(contrib []any) ([]any, error) {
		n := len(contrib)
		results := make([]any, n)
		for dst := 0; dst < n; dst++ {
			recv := make([][]byte, n)
			for src := 0; src < n; src++ {
				recv[src] = contrib[src].([][]byte)[dst]
			}
			results[dst] = recv
		}
		return results, nil
	})
	if err != nil {
		return nil, wrapErr("alltoallv", g.rank, err)
	}
	return res.([][]byte), nil
}

func fillAll(n int, v any) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = v
	}
	return out
}
