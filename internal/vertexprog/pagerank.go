package vertexprog

import (
	"context"

	"go.uber.org/zap"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
	"github.com/cs425-g28/graphbsp/internal/engine"
	"github.com/cs425-g28/graphbsp/internal/partition"
	"github.com/cs425-g28/graphbsp/internal/transport"
	"github.com/cs425-g28/graphbsp/internal/wire"
)

// PageRankResult holds the converged per-local-vertex rank scores.
type PageRankResult struct {
	PR []float64
}

// RunPageRank runs PageRank for a fixed number of iterations with no
// convergence check. Dangling mass (vertices with
// no outgoing edges) is redistributed uniformly across all N vertices
// each round via an all-reduce-sum of the local dangling contribution.
func RunPageRank(ctx context.Context, group transport.Group, part *partition.Partition, damping float64, iterations int, log *zap.Logger) (*PageRankResult, error) {
	n := part.LocalCount()
	pr := make([]float64, n)
	for i := range pr {
		pr[i] = 1.0
	}
	N := float64(part.GlobalCount())

	eng := engine.New[float64, float64](group, part, wire.Float64Codec{}, log)

	for round := 0; round < iterations; round++ {
		var localDangling float64
		for i := 0; i < n; i++ {
			if part.OutDegree(i) == 0 {
				localDangling += pr[i]
			}
		}
		globalDangling, err := group.AllreduceSumFloat64(ctx, localDangling)
		if err != nil {
			return nil, err
		}

		base := (1 - damping) + damping*globalDangling/N
		next := make([]float64, n)
		for i := range next {
			next[i] = base
		}

		scatter := func(localID int, out engine.Outboxes[float64]) {
			deg := part.OutDegree(localID)
			if deg == 0 {
				return
			}
			share := pr[localID] / float64(deg)
			for _, nb := range part.Neighbors(localID) {
				out.Append(part, uint64(nb), share)
			}
		}
		reduce := func(acc, payload float64) float64 { return acc + payload }
		apply := func(dst uint64, acc float64) {
			localID := part.LocalID(bsptypes.VertexId(dst))
			next[localID] += damping * acc
		}

		if err := eng.Run(ctx, 1, func() float64 { return 0 }, scatter, reduce, apply); err != nil {
			return nil, err
		}

		pr = next
	}

	return &PageRankResult{PR: pr}, nil
}
