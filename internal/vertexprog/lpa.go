package vertexprog

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
	"github.com/cs425-g28/graphbsp/internal/engine"
	"github.com/cs425-g28/graphbsp/internal/partition"
	"github.com/cs425-g28/graphbsp/internal/transport"
	"github.com/cs425-g28/graphbsp/internal/wire"
)

// labelCounts is the ordered-map accumulator for label propagation:
// label -> number of neighbors that sent it this round. Keys are
// walked in ascending order when picking a winner so ties break
// toward the lowest label id.
type labelCounts map[bsptypes.VertexId]int

// LPAResult holds the converged per-local-vertex labels.
type LPAResult struct {
	Label []bsptypes.VertexId
}

// RunLPA runs label propagation: each vertex starts labeled with its
// own global id, broadcasts its current label to
// every neighbor each round, and adopts whichever label it heard most
// often (ties go to the lowest label id). Vertices that receive no
// messages keep their label. Runs for a fixed number of rounds.
func RunLPA(ctx context.Context, group transport.Group, part *partition.Partition, iterations int, log *zap.Logger) (*LPAResult, error) {
	n := part.LocalCount()
	label := make([]bsptypes.VertexId, n)
	for i := range label {
		label[i] = part.GlobalID(i)
	}

	eng := engine.New[bsptypes.VertexId, labelCounts](group, part, wire.VertexIDCodec{}, log)

	for round := 0; round < iterations; round++ {
		scatter := func(localID int, out engine.Outboxes[bsptypes.VertexId]) {
			for _, nb := range part.Neighbors(localID) {
				out.Append(part, uint64(nb), label[localID])
			}
		}
		reduce := func(acc labelCounts, payload bsptypes.VertexId) labelCounts {
			acc[payload]++
			return acc
		}
		apply := func(dst uint64, acc labelCounts) {
			localID := part.LocalID(bsptypes.VertexId(dst))
			label[localID] = majorityLabel(acc, label[localID])
		}

		if err := eng.Run(ctx, 1, func() labelCounts { return make(labelCounts) }, scatter, reduce, apply); err != nil {
			return nil, err
		}
	}

	return &LPAResult{Label: label}, nil
}

// majorityLabel picks the label with the highest count in acc,
// breaking ties toward the lowest label id by walking keys ascending
// and requiring a strict improvement to replace the incumbent.
// current is returned unchanged if acc is empty.
func majorityLabel(acc labelCounts, current bsptypes.VertexId) bsptypes.VertexId {
	if len(acc) == 0 {
		return current
	}
	keys := make([]bsptypes.VertexId, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	best := keys[0]
	bestCount := -1
	for _, k := range keys {
		if acc[k] > bestCount {
			bestCount = acc[k]
			best = k
		}
	}
	return best
}
