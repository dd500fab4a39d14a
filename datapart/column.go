package datapart

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/NebulousLabs/errors"
)

// SubstreamKind distinguishes the physical role of a substream, which in
// turn decides whether assertMark enforces positional equality. Dictionary
// substreams of a LowCardinality column are read non-monotonically and are
// deliberately exempt (see datapart.Check's onlyRead carve-out).
type SubstreamKind int

const (
	SubstreamMain SubstreamKind = iota
	SubstreamNullMap
	SubstreamArraySizes
	SubstreamArrayValues
	SubstreamDictionaryKeys
	SubstreamIndexes
)

// Substream names one physical file contributing to a column's on-disk
// encoding, e.g. the null-map of a Nullable column or the dictionary of a
// LowCardinality column.
type Substream struct {
	// FileName is the file base name (without the .bin/.mrk extension),
	// already namespaced under the owning column's name.
	FileName string
	Kind     SubstreamKind
}

// IsDictionaryKeys reports whether this substream is a LowCardinality
// dictionary stream, the one kind whose marks are read but not
// positionally validated.
func (s Substream) IsDictionaryKeys() bool {
	return s.Kind == SubstreamDictionaryKeys
}

// ColumnType is the black-box type abstraction spec.md refers to: it
// enumerates the substream paths a column occupies on disk, and knows how
// to consume whole granules of rows from those substreams during the
// bulk-deserialize pass.
type ColumnType interface {
	// String returns the type's textual form as persisted in
	// columns.txt (e.g. "UInt64", "Nullable(String)").
	String() string

	// Substreams returns the substream files this column occupies,
	// namespaced under the given column name.
	Substreams(name string) []Substream

	// DeserializeRows consumes up to n rows of this column from the
	// substreams named in Substreams, looked up by FileName in streams.
	// It returns the number of rows actually read before any substream
	// was exhausted; a return less than n signals end-of-column.
	DeserializeRows(streams map[string]*Stream, name string, n int) (int, error)
}

// PrimaryKeyReader is implemented by column types simple enough to serve
// as a primary key component: reading a single scalar value from a plain
// reader, with no substream structure of their own. primary.idx is an
// uncompressed concatenation of these, one tuple per granule.
type PrimaryKeyReader interface {
	ReadPrimaryKeyValue(r io.Reader) error
}

// UInt64Type is a fixed-width 8-byte-per-row scalar column.
type UInt64Type struct{}

func (UInt64Type) String() string { return "UInt64" }

func (UInt64Type) ReadPrimaryKeyValue(r io.Reader) error {
	buf := make([]byte, 8)
	_, err := io.ReadFull(r, buf)
	return err
}

func (UInt64Type) Substreams(name string) []Substream {
	return []Substream{{FileName: name, Kind: SubstreamMain}}
}

func (UInt64Type) DeserializeRows(streams map[string]*Stream, name string, n int) (int, error) {
	st, ok := streams[name]
	if !ok {
		return 0, errors.Extend(ErrLogicalError, errors.New("stream not opened: "+name))
	}
	buf := make([]byte, 8)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(st.uncompressedHashing, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return i, nil
			}
			return i, err
		}
	}
	return n, nil
}

// StringType is a variable-width column: each row is a 4-byte little
// endian length prefix followed by that many bytes.
type StringType struct{}

func (StringType) String() string { return "String" }

func (StringType) Substreams(name string) []Substream {
	return []Substream{{FileName: name, Kind: SubstreamMain}}
}

func (StringType) ReadPrimaryKeyValue(r io.Reader) error {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return err
	}
	size := binary.LittleEndian.Uint32(lenBuf)
	if size == 0 {
		return nil
	}
	payload := make([]byte, size)
	_, err := io.ReadFull(r, payload)
	return err
}

func (StringType) DeserializeRows(streams map[string]*Stream, name string, n int) (int, error) {
	st, ok := streams[name]
	if !ok {
		return 0, errors.Extend(ErrLogicalError, errors.New("stream not opened: "+name))
	}
	lenBuf := make([]byte, 4)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(st.uncompressedHashing, lenBuf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return i, nil
			}
			return i, err
		}
		size := binary.LittleEndian.Uint32(lenBuf)
		if size > 0 {
			payload := make([]byte, size)
			if _, err := io.ReadFull(st.uncompressedHashing, payload); err != nil {
				return i, err
			}
		}
	}
	return n, nil
}

// NullableType wraps another column type with a one-byte-per-row null map
// substream.
type NullableType struct {
	Inner ColumnType
}

func (t NullableType) String() string { return fmt.Sprintf("Nullable(%s)", t.Inner.String()) }

func (t NullableType) Substreams(name string) []Substream {
	subs := []Substream{{FileName: name + ".null", Kind: SubstreamNullMap}}
	return append(subs, t.Inner.Substreams(name)...)
}

func (t NullableType) DeserializeRows(streams map[string]*Stream, name string, n int) (int, error) {
	st, ok := streams[name+".null"]
	if !ok {
		return 0, errors.Extend(ErrLogicalError, errors.New("stream not opened: "+name+".null"))
	}
	buf := make([]byte, 1)
	nullRows := 0
	for ; nullRows < n; nullRows++ {
		if _, err := io.ReadFull(st.uncompressedHashing, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nullRows, err
		}
	}
	innerRows, err := t.Inner.DeserializeRows(streams, name, n)
	if err != nil {
		return 0, err
	}
	if innerRows < nullRows {
		return innerRows, nil
	}
	return nullRows, nil
}

// ArrayType wraps another column type with an 8-byte-per-row sizes
// substream recording each row's own element count; the inner values
// substream holds the sum of those counts.
type ArrayType struct {
	Inner ColumnType
}

func (t ArrayType) String() string { return fmt.Sprintf("Array(%s)", t.Inner.String()) }

func (t ArrayType) Substreams(name string) []Substream {
	subs := []Substream{{FileName: name + ".size", Kind: SubstreamArraySizes}}
	return append(subs, t.Inner.Substreams(name)...)
}

func (t ArrayType) DeserializeRows(streams map[string]*Stream, name string, n int) (int, error) {
	st, ok := streams[name+".size"]
	if !ok {
		return 0, errors.Extend(ErrLogicalError, errors.New("stream not opened: "+name+".size"))
	}
	buf := make([]byte, 8)
	rows := 0
	totalElements := 0
	for ; rows < n; rows++ {
		if _, err := io.ReadFull(st.uncompressedHashing, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return rows, err
		}
		totalElements += int(binary.LittleEndian.Uint64(buf))
	}
	if _, err := t.Inner.DeserializeRows(streams, name, totalElements); err != nil {
		return rows, err
	}
	return rows, nil
}

// LowCardinalityType wraps another column type with a dictionary
// substream (not position-checked; see SubstreamDictionaryKeys) and a
// per-row 4-byte dictionary-index substream.
type LowCardinalityType struct {
	Inner ColumnType
}

func (t LowCardinalityType) String() string {
	return fmt.Sprintf("LowCardinality(%s)", t.Inner.String())
}

func (t LowCardinalityType) Substreams(name string) []Substream {
	return []Substream{
		{FileName: name + ".dict", Kind: SubstreamDictionaryKeys},
		{FileName: name + ".idx", Kind: SubstreamIndexes},
	}
}

func (t LowCardinalityType) DeserializeRows(streams map[string]*Stream, name string, n int) (int, error) {
	dict, ok := streams[name+".dict"]
	if !ok {
		return 0, errors.Extend(ErrLogicalError, errors.New("stream not opened: "+name+".dict"))
	}
	idx, ok := streams[name+".idx"]
	if !ok {
		return 0, errors.Extend(ErrLogicalError, errors.New("stream not opened: "+name+".idx"))
	}

	// The dictionary is appended to incrementally and is read in whole
	// length-prefixed chunks rather than one entry per row; how much (if
	// any) new dictionary data precedes this granule is encoded as a
	// single 4-byte chunk length, possibly zero.
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(dict.uncompressedHashing, lenBuf); err != nil {
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, err
		}
	} else {
		size := binary.LittleEndian.Uint32(lenBuf)
		if size > 0 {
			chunk := make([]byte, size)
			if _, err := io.ReadFull(dict.uncompressedHashing, chunk); err != nil {
				return 0, err
			}
		}
	}

	buf := make([]byte, 4)
	rows := 0
	for ; rows < n; rows++ {
		if _, err := io.ReadFull(idx.uncompressedHashing, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return rows, err
		}
	}
	return rows, nil
}
