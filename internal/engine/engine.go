// Package engine implements the super-step runtime that drives
// scatter -> exchange -> group-and-reduce -> apply across a fixed
// number of BSP rounds against a Graph Partition.
//
// The generic shape follows a Message<T>, run(iterations, scatter,
// reduce, apply) template, with one deliberate sharpening: the
// accumulator's reset is made explicit. Callers supply an Identity
// function instead of relying on a default zero value, so min-
// reductions (BFS, CC) do not break silently.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
	"github.com/cs425-g28/graphbsp/internal/partition"
	"github.com/cs425-g28/graphbsp/internal/transport"
	"github.com/cs425-g28/graphbsp/internal/wire"
)

// Message is one scattered value addressed to a destination vertex.
type Message[M any] struct {
	Dst     uint64
	Payload M
}

// Outboxes is the per-destination-rank collection a scatter callback
// appends to. It is thread-local for the duration of one worker's
// slice of owned vertices; the engine concatenates every worker's
// outboxes into per-rank send buffers after the join.
type Outboxes[M any] [][]Message[M]

// Append routes a message to the outbox for dst's owning rank.
func (o Outboxes[M]) Append(part *partition.Partition, dst uint64, payload M) {
	r := part.OwnerOf(bsptypes.VertexId(dst))
	o[r] = append(o[r], Message[M]{Dst: dst, Payload: payload})
}

// ScatterFunc is called once per owned local vertex index during the
// scatter phase. It must not mutate program state.
type ScatterFunc[M any] func(localID int, out Outboxes[M])

// ReduceFunc folds one received payload into an accumulator. It must
// be associative, and commutative unless the caller accepts
// unspecified intra-group ordering of received messages.
type ReduceFunc[M, A any] func(acc A, payload M) A

// ApplyFunc writes the folded accumulator back into program state for
// one destination vertex. It is the only callback permitted to mutate
// state, and runs serially.
type ApplyFunc[A any] func(dst uint64, acc A)

// Stats summarizes one super-step. Run logs it at debug level after
// every round; it is not returned to callers.
type Stats struct {
	MessagesSent     int
	MessagesReceived int
	DestRanksTouched int
}

// Engine is the super-step runtime for one rank, parameterized on a
// message payload type M and an accumulator type A. It is re-entrant
// across rounds and holds no program state of its own.
type Engine[M, A any] struct {
	group transport.Group
	part  *partition.Partition
	codec wire.Codec[M]
	log   *zap.Logger
	id    uuid.UUID
}

// New builds an Engine bound to one rank's Group and Partition for the
// lifetime of the caller's Run calls. codec is the wire encoding used
// for this program's message payload type (see internal/wire).
func New[M, A any](group transport.Group, part *partition.Partition, codec wire.Codec[M], log *zap.Logger) *Engine[M, A] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine[M, A]{
		group: group,
		part:  part,
		codec: codec,
		log:   log.With(zap.Int("rank", group.Rank())),
		id:    uuid.New(),
	}
}

// Run executes exactly rounds super-steps. identity produces a fresh
// accumulator at the start of every destination vertex's fold within
// a round; it must be the reducer's true identity element (e.g. +Inf
// for a min-reduction), never a bare zero value.
func (e *Engine[M, A]) Run(ctx context.Context, rounds int, identity func() A, scatter ScatterFunc[M], reduce ReduceFunc[M, A], apply ApplyFunc[A]) error {
	for round := 0; round < rounds; round++ {
		stats, err := e.step(ctx, scatter, reduce, apply, identity)
		if err != nil {
			return fmt.Errorf("engine: round %d: %w", round, err)
		}
		e.log.Debug("super-step complete",
			zap.String("run_id", e.id.String()),
			zap.Int("round", round),
			zap.Int("sent", stats.MessagesSent),
			zap.Int("received", stats.MessagesReceived),
			zap.Int("dest_ranks_touched", stats.DestRanksTouched),
		)
	}
	return nil
}

func (e *Engine[M, A]) step(ctx context.Context, scatter ScatterFunc[M], reduce ReduceFunc[M, A], apply ApplyFunc[A], identity func() A) (Stats, error) {
	size := e.group.Size()

	sendBufs, destRanks, err := e.scatterPhase(ctx, scatter, size)
	if err != nil {
		return Stats{}, err
	}

	recvMsgs, sent, err := e.exchangePhase(ctx, sendBufs)
	if err != nil {
		return Stats{}, err
	}

	e.groupReduceApply(recvMsgs, reduce, apply, identity)

	return Stats{
		MessagesSent:     sent,
		MessagesReceived: len(recvMsgs),
		DestRanksTouched: destRanks.Cardinality(),
	}, nil
}

// scatterPhase partitions owned local vertices across worker
// goroutines, using an errgroup so a panicking or erroring scatter
// callback is surfaced as a single error instead of vanishing into an
// unmonitored goroutine.
func (e *Engine[M, A]) scatterPhase(ctx context.Context, scatter ScatterFunc[M], size int) ([][]Message[M], mapset.Set[int], error) {
	localCount := e.part.LocalCount()
	workers := numWorkers(localCount)

	type partial struct {
		outboxes Outboxes[M]
	}
	partials := make([]partial, workers)

	g, _ := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("scatter callback panicked: %v", r)
				}
			}()
			out := make(Outboxes[M], size)
			lo, hi := workerRange(localCount, workers, w)
			for i := lo; i < hi; i++ {
				scatter(i, out)
			}
			partials[w] = partial{outboxes: out}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sendBufs := make([][]Message[M], size)
	destRanks := mapset.NewThreadUnsafeSet[int]()
	for _, p := range partials {
		for r, msgs := range p.outboxes {
			if len(msgs) == 0 {
				continue
			}
			sendBufs[r] = append(sendBufs[r], msgs...)
			destRanks.Add(r)
		}
	}
	return sendBufs, destRanks, nil
}

// exchangePhase performs one variable-length payload all-to-all,
// encoding each rank's outbound messages with e.codec. No separate
// count all-to-all is made: Alltoallv carries each payload's length.
func (e *Engine[M, A]) exchangePhase(ctx context.Context, sendBufs [][]Message[M]) ([]Message[M], int, error) {
	size := e.group.Size()

	encoded := make([][]byte, size)
	sent := 0
	for r, msgs := range sendBufs {
		var buf bytes.Buffer
		for _, m := range msgs {
			var hdr [8]byte
			putU64(hdr[:], m.Dst)
			buf.Write(hdr[:])
			e.codec.Encode(&buf, m.Payload)
		}
		encoded[r] = buf.Bytes()
		sent += len(msgs)
	}

	recvBytes, err := e.group.Alltoallv(ctx, encoded)
	if err != nil {
		return nil, 0, err
	}

	var received []Message[M]
	for _, b := range recvBytes {
		msgs, err := e.decodeMessages(b)
		if err != nil {
			return nil, 0, fmt.Errorf("decode inbound messages: %w", err)
		}
		received = append(received, msgs...)
	}
	return received, sent, nil
}

func (e *Engine[M, A]) decodeMessages(b []byte) ([]Message[M], error) {
	r := bytes.NewReader(b)
	var out []Message[M]
	for r.Len() > 0 {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
		dst := getU64(hdr[:])
		payload, err := e.codec.Decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, Message[M]{Dst: dst, Payload: payload})
	}
	return out, nil
}

// groupReduceApply sorts received messages by destination ascending,
// folds contiguous equal-destination runs, and applies each fold
// exactly once per destination with data. Any destination not owned by
// this rank is silently dropped: owner() is authoritative, so such a
// message indicates an upstream bug, not a condition callers should
// branch on.
func (e *Engine[M, A]) groupReduceApply(msgs []Message[M], reduce ReduceFunc[M, A], apply ApplyFunc[A], identity func() A) {
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Dst < msgs[j].Dst })

	localCount := uint64(e.part.LocalCount())
	start := uint64(e.part.LocalStart())

	i := 0
	for i < len(msgs) {
		dst := msgs[i].Dst
		j := i
		acc := identity()
		for j < len(msgs) && msgs[j].Dst == dst {
			acc = reduce(acc, msgs[j].Payload)
			j++
		}
		if dst >= start && dst-start < localCount {
			apply(dst, acc)
		} else {
			e.log.Debug("dropping message for unowned destination", zap.Uint64("dst", dst))
		}
		i = j
	}
}

func numWorkers(localCount int) int {
	if localCount <= 0 {
		return 1
	}
	const maxWorkers = 8
	if localCount < maxWorkers {
		return localCount
	}
	return maxWorkers
}

func workerRange(total, workers, w int) (int, int) {
	base := total / workers
	rem := total % workers
	lo := w*base + minInt(w, rem)
	hi := lo + base
	if w < rem {
		hi++
	}
	return lo, hi
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

