// Package loader parses the text edge-list format, broadcasts the
// vertex count, and builds one partition.Partition per rank.
//
// It uses an all-ranks-read-and-filter strategy: every rank scans the
// full edge stream broadcast from rank 0 and keeps only the edges it
// owns, rather than doing any parallel I/O. This keeps load balancing
// out of the loader entirely -- it falls out of partition.Owner.
package loader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
	"github.com/cs425-g28/graphbsp/internal/errs"
	"github.com/cs425-g28/graphbsp/internal/partition"
	"github.com/cs425-g28/graphbsp/internal/transport"
)

// Stats reports diagnostic counts from one Load call. TouchedLocal is
// the number of distinct local vertex indices that received at least
// one accepted edge; it does not influence CSR construction, which
// still tolerates duplicate edges in the input.
type Stats struct {
	EdgesAccepted int
	EdgesSkipped  int
	TouchedLocal  int
}

// Load parses the edge-list file at path, agrees every rank on the
// vertex count N via group, and returns this rank's Partition already
// frozen and ready for use.
//
// File format: line 1 is N (base-10, non-negative). Every subsequent
// line is attempted as "u v" (base-10, whitespace-separated); a line
// whose first two fields do not parse as integers is skipped, including
// a truncated trailing line at EOF. Anything after the second integer
// is ignored.
func Load(ctx context.Context, group transport.Group, path string, log *zap.Logger) (*partition.Partition, Stats, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rank := group.Rank()
	size := group.Size()

	var raw []byte
	if rank == 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, Stats{}, &errs.LoadError{Path: path, Err: err}
		}
		raw = data
	}

	n, body, err := broadcastFile(ctx, group, raw, path)
	if err != nil {
		return nil, Stats{}, err
	}

	part, err := partition.New(rank, size, n)
	if err != nil {
		return nil, Stats{}, &errs.LoadError{Path: path, Err: err}
	}

	stats, err := scanEdges(part, body)
	if err != nil {
		return nil, Stats{}, &errs.LoadError{Path: path, Err: err}
	}
	part.Freeze()

	log.Debug("graph loaded",
		zap.String("path", path),
		zap.Uint64("global_count", uint64(n)),
		zap.Int("edges_accepted", stats.EdgesAccepted),
		zap.Int("edges_skipped", stats.EdgesSkipped),
		zap.Int("touched_local", stats.TouchedLocal),
	)
	return part, stats, nil
}

// broadcastFile has rank 0 parse line 1 of raw as N and broadcasts
// both N (as its own small fixed-width frame) and the remainder of the
// file (the edge body) to every rank via two Broadcast collectives.
func broadcastFile(ctx context.Context, group transport.Group, raw []byte, path string) (bsptypes.VertexId, []byte, error) {
	var nBytes []byte
	var body []byte
	if group.Rank() == 0 {
		n, rest, err := parseHeader(raw)
		if err != nil {
			return 0, nil, &errs.LoadError{Path: path, Line: 1, Err: err}
		}
		nBytes = encodeU64(uint64(n))
		body = rest
	}

	nOut, err := group.Broadcast(ctx, nBytes, 0)
	if err != nil {
		return 0, nil, &errs.LoadError{Path: path, Err: fmt.Errorf("broadcast vertex count: %w", err)}
	}
	bodyOut, err := group.Broadcast(ctx, body, 0)
	if err != nil {
		return 0, nil, &errs.LoadError{Path: path, Err: fmt.Errorf("broadcast edge body: %w", err)}
	}

	n := bsptypes.VertexId(decodeU64(nOut))
	return n, bodyOut, nil
}

func parseHeader(raw []byte) (bsptypes.VertexId, []byte, error) {
	idx := bytes.IndexByte(raw, '\n')
	var line string
	var rest []byte
	if idx < 0 {
		line = string(raw)
		rest = nil
	} else {
		line = string(raw[:idx])
		rest = raw[idx+1:]
	}
	n, err := strconv.ParseUint(trimCR(line), 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("parse vertex count from header %q: %w", line, err)
	}
	return bsptypes.VertexId(n), rest, nil
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}

// scanEdges walks every "u v" line in body, keeping only edges whose
// source is owned by part, and appends them via part.AddEdge.
func scanEdges(part *partition.Partition, body []byte) (Stats, error) {
	var stats Stats
	touched := mapset.NewThreadUnsafeSet[int]()

	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		u, v, ok := parseEdgeLine(sc.Text())
		if !ok {
			stats.EdgesSkipped++
			continue
		}
		if u < part.LocalStart() || u >= part.LocalEnd() {
			continue
		}
		if v >= part.GlobalCount() {
			stats.EdgesSkipped++
			continue
		}
		if err := part.AddEdge(bsptypes.Edge{From: u, To: v, Weight: 1.0}); err != nil {
			return stats, err
		}
		stats.EdgesAccepted++
		touched.Add(part.LocalID(u))
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("scan edge body: %w", err)
	}
	stats.TouchedLocal = touched.Cardinality()
	return stats, nil
}

func parseEdgeLine(line string) (u, v bsptypes.VertexId, ok bool) {
	var a, b uint64
	n, err := fmt.Sscanf(line, "%d %d", &a, &b)
	if err != nil || n != 2 {
		return 0, 0, false
	}
	return bsptypes.VertexId(a), bsptypes.VertexId(b), true
}

func encodeU64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func decodeU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
