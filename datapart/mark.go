package datapart

import (
	"encoding/binary"
	"io"
)

// MarkInCompressedFile locates a granule boundary: the byte offset of its
// compressed block within the .bin file, and the byte offset within that
// block's decompressed contents.
type MarkInCompressedFile struct {
	OffsetInCompressedFile    uint64
	OffsetInDecompressedBlock uint64
}

// markRecordSize is the width in bytes of a legacy .mrk record (two u64s).
const markRecordSize = 16

// markRecordSizeV2 is the width in bytes of a .mrk2 record (two u64s plus
// a row count).
const markRecordSizeV2 = 24

// readMark reads one mark record from r. hasRowCount selects between the
// legacy two-field layout and the .mrk2 three-field layout; when false the
// returned row count is always 0 and the caller must derive it from the
// granularity descriptor.
func readMark(r io.Reader, hasRowCount bool) (MarkInCompressedFile, int, error) {
	width := markRecordSize
	if hasRowCount {
		width = markRecordSizeV2
	}
	buf := make([]byte, width)
	if _, err := io.ReadFull(r, buf); err != nil {
		return MarkInCompressedFile{}, 0, err
	}
	mark := MarkInCompressedFile{
		OffsetInCompressedFile:    binary.LittleEndian.Uint64(buf[0:8]),
		OffsetInDecompressedBlock: binary.LittleEndian.Uint64(buf[8:16]),
	}
	rows := 0
	if hasRowCount {
		rows = int(binary.LittleEndian.Uint64(buf[16:24]))
	}
	return mark, rows, nil
}

// writeMark writes one mark record to w, used by test fixtures and by any
// future writer-side tooling.
func writeMark(w io.Writer, mark MarkInCompressedFile, rows int, hasRowCount bool) error {
	width := markRecordSize
	if hasRowCount {
		width = markRecordSizeV2
	}
	buf := make([]byte, width)
	binary.LittleEndian.PutUint64(buf[0:8], mark.OffsetInCompressedFile)
	binary.LittleEndian.PutUint64(buf[8:16], mark.OffsetInDecompressedBlock)
	if hasRowCount {
		binary.LittleEndian.PutUint64(buf[16:24], uint64(rows))
	}
	_, err := w.Write(buf)
	return err
}
