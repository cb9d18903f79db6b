// Package partition implements the canonical chunk/remainder vertex
// partitioning scheme and the local CSR storage for the vertex block a
// rank owns.
//
// The split and its inverse (Owner) are the one piece of arithmetic
// every other package in this module depends on to resolve a vertex's
// owning rank without any communication; New's split and Owner's
// inverse must agree with each other exactly for every vertex id.
package partition

import (
	"fmt"
	"sort"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
)

// Partition holds the global partitioning parameters for a rank plus
// the CSR storage for that rank's owned vertices' outgoing edges.
//
// A Partition is built once via New, populated edge-by-edge via
// AddEdge, and frozen via Freeze. After Freeze it is immutable and safe
// for concurrent read access from every scatter worker.
type Partition struct {
	rank int
	size int

	globalCount bsptypes.VertexId
	localStart  bsptypes.VertexId
	localEnd    bsptypes.VertexId

	chunk bsptypes.VertexId
	rem   bsptypes.VertexId

	// pending holds per-local-vertex adjacency lists before Freeze
	// flattens them into CSR. nil after Freeze.
	pending [][]bsptypes.Edge

	rowPtr  []uint64
	colInd  []bsptypes.VertexId
	weights []bsptypes.EdgeWeight

	frozen bool
}

// New builds the (initially empty) partition owned by rank out of size
// for a graph of globalCount vertices, using the canonical split:
// ranks [0, rem) own chunk+1 vertices, ranks [rem, size) own chunk.
func New(rank, size int, globalCount bsptypes.VertexId) (*Partition, error) {
	if size <= 0 {
		return nil, fmt.Errorf("partition: size must be positive, got %d", size)
	}
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("partition: rank %d out of range [0,%d)", rank, size)
	}

	chunk := globalCount / bsptypes.VertexId(size)
	rem := globalCount % bsptypes.VertexId(size)

	start := startOf(rank, chunk, rem)
	end := startOf(rank+1, chunk, rem)

	localCount := int(end - start)
	p := &Partition{
		rank:        rank,
		size:        size,
		globalCount: globalCount,
		localStart:  start,
		localEnd:    end,
		chunk:       chunk,
		rem:         rem,
		pending:     make([][]bsptypes.Edge, localCount),
	}
	return p, nil
}

// startOf returns start(r) for the canonical split: ranks below rem own
// chunk+1 vertices each, the rest own chunk.
func startOf(r int, chunk, rem bsptypes.VertexId) bsptypes.VertexId {
	rr := bsptypes.VertexId(r)
	if rr <= rem {
		return rr * (chunk + 1)
	}
	return rem*(chunk+1) + (rr-rem)*chunk
}

// Owner resolves the rank that owns global vertex vid, without
// communication, for a group of the given size over a graph of
// globalCount vertices. It is the free-standing form of the same
// arithmetic Partition.OwnerOf uses, exposed so the engine and loader
// can resolve ownership before any Partition exists locally (e.g. for a
// peer's vertex).
func Owner(vid bsptypes.VertexId, size int, globalCount bsptypes.VertexId) int {
	chunk := globalCount / bsptypes.VertexId(size)
	rem := globalCount % bsptypes.VertexId(size)
	split := rem * (chunk + 1)
	if vid < split {
		return int(vid / (chunk + 1))
	}
	return int(rem + (vid-split)/chunk)
}

// OwnerOf resolves the owning rank of a global vertex id under this
// partition's (size, globalCount) parameters.
func (p *Partition) OwnerOf(vid bsptypes.VertexId) int {
	return Owner(vid, p.size, p.globalCount)
}

// LocalCount returns the number of vertices owned by this rank.
func (p *Partition) LocalCount() int { return int(p.localEnd - p.localStart) }

// GlobalCount returns the total vertex count N across the whole group.
func (p *Partition) GlobalCount() bsptypes.VertexId { return p.globalCount }

// LocalStart returns the first global vertex id owned by this rank.
func (p *Partition) LocalStart() bsptypes.VertexId { return p.localStart }

// LocalEnd returns the exclusive upper bound of the range owned by this rank.
func (p *Partition) LocalEnd() bsptypes.VertexId { return p.localEnd }

// GlobalID converts a local vertex index to its global id.
func (p *Partition) GlobalID(localID int) bsptypes.VertexId {
	return p.localStart + bsptypes.VertexId(localID)
}

// LocalID converts a global vertex id owned by this rank to its local
// index. Callers must have already checked ownership; LocalID panics on
// an id outside [localStart, localEnd).
func (p *Partition) LocalID(vid bsptypes.VertexId) int {
	if vid < p.localStart || vid >= p.localEnd {
		panic(fmt.Sprintf("partition: vertex %d not owned by rank %d (range [%d,%d))", vid, p.rank, p.localStart, p.localEnd))
	}
	return int(vid - p.localStart)
}

// AddEdge appends a directed edge to the adjacency list of edge.From,
// which must be owned by this rank. It returns an error, and adds
// nothing, if called after Freeze, if edge.From is not owned by this
// rank, or if edge.To is not below the global vertex count.
func (p *Partition) AddEdge(edge bsptypes.Edge) error {
	if p.frozen {
		return fmt.Errorf("partition: AddEdge called after Freeze")
	}
	if edge.From < p.localStart || edge.From >= p.localEnd {
		return fmt.Errorf("partition: edge source %d not owned by rank %d", edge.From, p.rank)
	}
	if edge.To >= p.globalCount {
		return fmt.Errorf("partition: edge destination %d out of range [0,%d)", edge.To, p.globalCount)
	}
	local := int(edge.From - p.localStart)
	p.pending[local] = append(p.pending[local], edge)
	return nil
}

// Freeze sorts every local adjacency list ascending by destination and
// flattens them into CSR storage. After Freeze, Partition is immutable
// and pending is released.
func (p *Partition) Freeze() {
	if p.frozen {
		return
	}
	n := len(p.pending)
	p.rowPtr = make([]uint64, n+1)
	var total uint64
	for i, adj := range p.pending {
		p.rowPtr[i] = total
		total += uint64(len(adj))
		_ = i
	}
	p.rowPtr[n] = total

	p.colInd = make([]bsptypes.VertexId, total)
	p.weights = make([]bsptypes.EdgeWeight, total)
	for i, adj := range p.pending {
		sort.Slice(adj, func(a, b int) bool { return adj[a].To < adj[b].To })
		off := p.rowPtr[i]
		for j, e := range adj {
			p.colInd[off+uint64(j)] = e.To
			w := e.Weight
			if w == 0 {
				w = 1.0
			}
			p.weights[off+uint64(j)] = w
		}
	}
	p.pending = nil
	p.frozen = true
}

// OutDegree returns the number of outgoing edges of the local vertex.
func (p *Partition) OutDegree(localID int) int {
	return int(p.rowPtr[localID+1] - p.rowPtr[localID])
}

// Neighbors returns the destination vertex ids of localID's outgoing
// edges, sorted ascending. The returned slice aliases CSR storage and
// must not be mutated.
func (p *Partition) Neighbors(localID int) []bsptypes.VertexId {
	return p.colInd[p.rowPtr[localID]:p.rowPtr[localID+1]]
}

// Weights returns the per-edge weights parallel to Neighbors(localID).
func (p *Partition) Weights(localID int) []bsptypes.EdgeWeight {
	return p.weights[p.rowPtr[localID]:p.rowPtr[localID+1]]
}

// RowPtr exposes the raw CSR row-pointer array, chiefly for invariant
// tests.
func (p *Partition) RowPtr() []uint64 { return p.rowPtr }

// ColInd exposes the raw CSR column-index array, chiefly for invariant tests.
func (p *Partition) ColInd() []bsptypes.VertexId { return p.colInd }
