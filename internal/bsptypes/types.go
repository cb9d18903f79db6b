// Package bsptypes holds the vocabulary shared by every other package in
// this module: vertex identifiers, edge weights, and the raw edge tuple
// the loader and the partition builder pass back and forth.
package bsptypes

// VertexId is a globally unique vertex identifier in [0, N).
//
// IDs are dense and contiguous: the partitioning function in the
// partition package relies on that to compute owner(v) in O(1).
type VertexId uint64

// EdgeWeight is the weight carried by a directed edge. The text loader
// always produces 1.0; CSR storage keeps the field so a future loader
// (or a test) can populate real weights without changing the layout.
type EdgeWeight float32

// Edge is one directed, optionally-weighted edge as read off the wire
// or out of the edge-list file, before it has been assigned to a
// partition's CSR.
type Edge struct {
	From   VertexId
	To     VertexId
	Weight EdgeWeight
}
