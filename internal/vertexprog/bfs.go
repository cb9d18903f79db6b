// Package vertexprog implements the five vertex programs as clients
// of internal/engine, each owning its local per-vertex state and the
// scatter/reduce/apply triple that drives it.
package vertexprog

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
	"github.com/cs425-g28/graphbsp/internal/engine"
	"github.com/cs425-g28/graphbsp/internal/partition"
	"github.com/cs425-g28/graphbsp/internal/transport"
	"github.com/cs425-g28/graphbsp/internal/wire"
)

// infinity is the ∞ identity for BFS distances. math.MaxUint64 is used
// rather than an actual unreachable sentinel so the wire codec (a
// plain Uint64Codec) needs no special-casing.
const infinity uint64 = math.MaxUint64

// BFSResult holds the converged per-local-vertex distances.
type BFSResult struct {
	Dist []uint64
}

// RunBFS executes level-synchronous single-source BFS: round k
// scatters dist+1 from every vertex whose distance was
// set to k in the previous round, reduces by min, and applies only
// strictly-decreasing writes. It stops when no rank reports a change,
// or after maxIter rounds, whichever comes first.
func RunBFS(ctx context.Context, group transport.Group, part *partition.Partition, source bsptypes.VertexId, maxIter int, log *zap.Logger) (*BFSResult, error) {
	n := part.LocalCount()
	dist := make([]uint64, n)
	for i := range dist {
		dist[i] = infinity
	}
	if source >= part.LocalStart() && source < part.LocalEnd() {
		dist[part.LocalID(source)] = 0
	}

	eng := engine.New[uint64, uint64](group, part, wire.Uint64Codec{}, log)

	for round := 0; round < maxIter; round++ {
		changed := 0

		scatter := func(localID int, out engine.Outboxes[uint64]) {
			if dist[localID] != uint64(round) {
				return
			}
			for _, nb := range part.Neighbors(localID) {
				out.Append(part, uint64(nb), dist[localID]+1)
			}
		}
		reduce := func(acc, payload uint64) uint64 {
			if payload < acc {
				return payload
			}
			return acc
		}
		apply := func(dst uint64, acc uint64) {
			localID := part.LocalID(bsptypes.VertexId(dst))
			if acc < dist[localID] {
				dist[localID] = acc
				changed++
			}
		}

		if err := eng.Run(ctx, 1, func() uint64 { return infinity }, scatter, reduce, apply); err != nil {
			return nil, err
		}

		total, err := group.AllreduceSumInt32(ctx, int32(changed))
		if err != nil {
			return nil, err
		}
		if total == 0 {
			break
		}
	}

	return &BFSResult{Dist: dist}, nil
}
