// Package transport implements the Group Transport: a thin abstraction
// over a collective message-passing layer that gives every other
// package rank/size, a private communication context, barriers,
// fixed-width all-reduce, and variable-length all-to-all exchange of
// opaque byte payloads.
//
// Two implementations satisfy the Group interface: an in-process group
// built on a mutex and condition variable (local.go, used by tests and single-binary demos)
// and a TCP-socket group (tcp.go, the deployable form, built on a
// plain net.Dial/net.Listen request/response pattern). Both treat any
// participant's error as fatal to the whole collective, surfaced as a
// TransportError.
package transport

import (
	"context"

	"github.com/cs425-g28/graphbsp/internal/errs"
)

// ReduceOp names a fixed-width all-reduce operation.
type ReduceOp int

const (
	// SumInt32 reduces 32-bit integers by addition.
	SumInt32 ReduceOp = iota
	// SumFloat64 reduces 64-bit floats by addition.
	SumFloat64
	// MaxInt32 reduces 32-bit integers by maximum.
	MaxInt32
)

// Group is one rank's handle onto a fixed-size collective. Every
// collective method (all but Rank, Size and Close) is a group-wide
// barrier: it does not return on any rank until every
// rank has entered the same call, and an error on any rank is returned
// (wrapped as *errs.TransportError) to every rank.
type Group interface {
	// Rank returns this participant's rank, in [0, Size()).
	Rank() int
	// Size returns the fixed number of participants in the group.
	Size() int

	// Barrier blocks until every rank has called Barrier.
	Barrier(ctx context.Context) error

	// AllreduceSumInt32 sums one int32 per rank and returns the total to all ranks.
	AllreduceSumInt32(ctx context.Context, v int32) (int32, error)
	// AllreduceSumFloat64 sums one float64 per rank and returns the total to all ranks.
	AllreduceSumFloat64(ctx context.Context, v float64) (float64, error)
	// AllreduceMaxInt32 returns the maximum of one int32 per rank to all ranks.
	AllreduceMaxInt32(ctx context.Context, v int32) (int32, error)

	// Broadcast sends buf from root to every rank (root's buf is
	// returned unchanged; every other rank receives root's bytes).
	Broadcast(ctx context.Context, buf []byte, root int) ([]byte, error)

	// Alltoall exchanges one int32 per destination rank: counts[r] sent
	// by this rank to rank r, returns what every rank sent to this one.
	Alltoall(ctx context.Context, counts []int32) ([]int32, error)

	// Alltoallv exchanges variable-length byte payloads: send[r] is
	// this rank's payload for rank r. Returns recv[r], the payload this
	// rank received from rank r, for every r.
	Alltoallv(ctx context.Context, send [][]byte) ([][]byte, error)

	// Close releases any resources (connections, goroutines) held by
	// this rank's handle. It does not itself barrier.
	Close() error
}

// wrapErr builds a *errs.TransportError tagged with op and this rank.
func wrapErr(op string, rank int, cause error) error {
	if cause == nil {
		return nil
	}
	return &errs.TransportError{Op: op, Rank: rank, Cause: cause}
}
