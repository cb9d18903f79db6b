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

// maxVertexID is the identity for the CC min-reduction: larger than
// any real VertexId that could appear in a graph sized by a uint64 N,
// so it never wins a min comparison against a real label.
const maxVertexID = bsptypes.VertexId(^uint64(0))

// CCResult holds the converged per-local-vertex component labels.
type CCResult struct {
	Label []bsptypes.VertexId
}

// RunCC runs min-label connected-components propagation: every vertex
// starts labeled with its own global id, broadcasts its current label
// to every neighbor each
// round, and keeps the minimum label it has seen. Converges the same
// way BFS does: a global change count of zero, or maxIter rounds.
func RunCC(ctx context.Context, group transport.Group, part *partition.Partition, maxIter int, log *zap.Logger) (*CCResult, error) {
	n := part.LocalCount()
	label := make([]bsptypes.VertexId, n)
	for i := range label {
		label[i] = part.GlobalID(i)
	}

	eng := engine.New[bsptypes.VertexId, bsptypes.VertexId](group, part, wire.VertexIDCodec{}, log)

	for round := 0; round < maxIter; round++ {
		changed := 0

		scatter := func(localID int, out engine.Outboxes[bsptypes.VertexId]) {
			for _, nb := range part.Neighbors(localID) {
				out.Append(part, uint64(nb), label[localID])
			}
		}
		reduce := func(acc, payload bsptypes.VertexId) bsptypes.VertexId {
			if payload < acc {
				return payload
			}
			return acc
		}
		apply := func(dst uint64, acc bsptypes.VertexId) {
			localID := part.LocalID(bsptypes.VertexId(dst))
			if acc < label[localID] {
				label[localID] = acc
				changed++
			}
		}

		if err := eng.Run(ctx, 1, func() bsptypes.VertexId { return maxVertexID }, scatter, reduce, apply); err != nil {
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

	return &CCResult{Label: label}, nil
}
