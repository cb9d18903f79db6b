package vertexprog

import (
	"context"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
	"github.com/cs425-g28/graphbsp/internal/engine"
	"github.com/cs425-g28/graphbsp/internal/partition"
	"github.com/cs425-g28/graphbsp/internal/transport"
	"github.com/cs425-g28/graphbsp/internal/wire"
)

// RandomWalkResult holds every walk still registered to a local
// vertex once the fixed hop count has been taken.
type RandomWalkResult struct {
	Active [][]wire.Walk // indexed by local vertex id
}

// RunRandomWalk runs the random-walk program: numWalks walks are
// spawned per owned vertex with unique ids encoding (globalId, walk
// index), then each of walkLen rounds picks a uniform random
// out-neighbor per walk (or, for a dead-end vertex, leaves the walk in
// place) and migrates it there. Randomness comes from a generator
// seeded deterministically per rank (seed = 1234 + rank).
func RunRandomWalk(ctx context.Context, group transport.Group, part *partition.Partition, walkLen, numWalks int, log *zap.Logger) (*RandomWalkResult, error) {
	n := part.LocalCount()
	active := make([][]wire.Walk, n)
	for i := 0; i < n; i++ {
		gid := part.GlobalID(i)
		for w := 0; w < numWalks; w++ {
			id := (uint64(gid) << 32) | uint64(w)
			active[i] = append(active[i], wire.Walk{
				ID:    id,
				Start: gid,
				Path:  []bsptypes.VertexId{gid},
			})
		}
	}

	src := rand.NewSource(int64(1234 + group.Rank()))
	rng := rand.New(src)
	var rngMu sync.Mutex

	eng := engine.New[wire.Walk, []wire.Walk](group, part, wire.VertexPathCodec{}, log)

	for round := 0; round < walkLen; round++ {
		next := make([][]wire.Walk, n)

		scatter := func(localID int, out engine.Outboxes[wire.Walk]) {
			gid := part.GlobalID(localID)
			deg := part.OutDegree(localID)
			for _, w := range active[localID] {
				if deg == 0 {
					out.Append(part, uint64(gid), w)
					continue
				}
				rngMu.Lock()
				idx := rng.Intn(deg)
				rngMu.Unlock()
				next := part.Neighbors(localID)[idx]
				w.Path = append(append([]bsptypes.VertexId(nil), w.Path...), next)
				out.Append(part, uint64(next), w)
			}
		}
		reduce := func(acc []wire.Walk, payload wire.Walk) []wire.Walk {
			return append(acc, payload)
		}
		apply := func(dst uint64, acc []wire.Walk) {
			localID := part.LocalID(bsptypes.VertexId(dst))
			next[localID] = acc
		}

		if err := eng.Run(ctx, 1, func() []wire.Walk { return nil }, scatter, reduce, apply); err != nil {
			return nil, err
		}
		active = next
	}

	return &RandomWalkResult{Active: active}, nil
}
