// Package dataflow implements the Resize processor: a dataflow node that
// multiplexes and demultiplexes chunks between a fixed set of input and
// output ports inside a pull/push execution graph.
package dataflow

// Chunk is the opaque unit of data forwarded between processors. Resize
// never inspects a chunk's payload; Seq exists purely so tests can detect
// drops, duplicates or reordering beyond the documented pull/push pairing.
type Chunk struct {
	Payload []byte
	Seq     uint64
}
