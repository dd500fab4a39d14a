package datapart

import (
	"encoding/binary"
	"io"
)

// IndexGranule is one deserialized unit of a secondary index's .idx file,
// covering the same row range as one mark.
type IndexGranule interface {
	// DeserializeBinary reads one granule's worth of index data from r.
	DeserializeBinary(r io.Reader) error
}

// SecondaryIndex is a skip index (e.g. min-max) attached to a part.
type SecondaryIndex interface {
	// FileName is the base name of the index's .idx/.mrk files.
	FileName() string
	// CreateGranule returns a fresh granule reader for this index.
	CreateGranule() IndexGranule
}

// minMaxGranule stores two 8-byte bounds, the simplest useful secondary
// index shape: a per-granule (min, max) pair over one indexed expression.
type minMaxGranule struct {
	Min, Max uint64
}

func (g *minMaxGranule) DeserializeBinary(r io.Reader) error {
	buf := make([]byte, 16)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	g.Min = binary.LittleEndian.Uint64(buf[0:8])
	g.Max = binary.LittleEndian.Uint64(buf[8:16])
	return nil
}

// MinMaxIndex is a concrete SecondaryIndex computing per-granule
// (min, max) bounds, named after the expression it indexes.
type MinMaxIndex struct {
	Name string
}

func (idx MinMaxIndex) FileName() string { return "minmax_" + idx.Name }

func (idx MinMaxIndex) CreateGranule() IndexGranule { return &minMaxGranule{} }
