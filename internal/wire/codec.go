// Package wire implements a fixed-width, little-endian binary codec,
// deliberately lighter than a schema'd serialization library since
// every payload here is a small fixed- or bounded-width scalar on a
// tight exchange-phase hot path. Every Message[M] that crosses a
// transport.Group's Alltoallv boundary is encoded with one of the
// Codec[M] implementations here.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
)

// Codec encodes and decodes a single payload value of type M to and
// from a little-endian byte stream. Implementations must be
// deterministic and, for fixed-width payloads, must always write
// exactly Size() bytes (Size returns 0 for variable-width codecs).
type Codec[M any] interface {
	Encode(buf *bytes.Buffer, v M)
	Decode(r *bytes.Reader) (M, error)
	Size() int
}

// Uint64Codec encodes a plain uint64, used by BFS (distances).
type Uint64Codec struct{}

func (Uint64Codec) Size() int { return 8 }

func (Uint64Codec) Encode(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func (Uint64Codec) Decode(r *bytes.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, fmt.Errorf("wire: decode uint64: %w", err)
	}
	return binary.LittleEndian.Uint64(tmp[:]), nil
}

// VertexIDCodec encodes a bsptypes.VertexId, the payload type for CC
// and LPA.
type VertexIDCodec struct{}

func (VertexIDCodec) Size() int { return 8 }

func (VertexIDCodec) Encode(buf *bytes.Buffer, v bsptypes.VertexId) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	buf.Write(tmp[:])
}

func (VertexIDCodec) Decode(r *bytes.Reader) (bsptypes.VertexId, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, fmt.Errorf("wire: decode vertex id: %w", err)
	}
	return bsptypes.VertexId(binary.LittleEndian.Uint64(tmp[:])), nil
}

// Float64Codec encodes an IEEE-754 double, used by PageRank.
type Float64Codec struct{}

func (Float64Codec) Size() int { return 8 }

func (Float64Codec) Encode(buf *bytes.Buffer, v float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	buf.Write(tmp[:])
}

func (Float64Codec) Decode(r *bytes.Reader) (float64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, fmt.Errorf("wire: decode float64: %w", err)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(tmp[:])), nil
}

// VertexPathCodec encodes a Walk for the random-walk program: a fixed
// 16-byte header (walk id, start vertex) followed by a length-prefixed
// path of VertexId. It is the one variable-width codec in this
// package because a walk's path grows by one hop per super-step.
type VertexPathCodec struct{}

func (VertexPathCodec) Size() int { return 0 } // variable-width

// Walk is the random-walk program's message and accumulator-element
// payload.
type Walk struct {
	ID    uint64
	Start bsptypes.VertexId
	Path  []bsptypes.VertexId
}

func (VertexPathCodec) Encode(buf *bytes.Buffer, w Walk) {
	var hdr [20]byte
	binary.LittleEndian.PutUint64(hdr[0:8], w.ID)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(w.Start))
	binary.LittleEndian.PutUint32(hdr[16:20], uint32(len(w.Path)))
	buf.Write(hdr[:])
	for _, v := range w.Path {
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v))
		buf.Write(tmp[:])
	}
}

func (VertexPathCodec) Decode(r *bytes.Reader) (Walk, error) {
	var hdr [20]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Walk{}, fmt.Errorf("wire: decode walk header: %w", err)
	}
	id := binary.LittleEndian.Uint64(hdr[0:8])
	start := bsptypes.VertexId(binary.LittleEndian.Uint64(hdr[8:16]))
	n := binary.LittleEndian.Uint32(hdr[16:20])
	path := make([]bsptypes.VertexId, n)
	for i := range path {
		var tmp [8]byte
		if _, err := io.ReadFull(r, tmp[:]); err != nil {
			return Walk{}, fmt.Errorf("wire: decode walk path[%d]: %w", i, err)
		}
		path[i] = bsptypes.VertexId(binary.LittleEndian.Uint64(tmp[:]))
	}
	return Walk{ID: id, Start: start, Path: path}, nil
}
