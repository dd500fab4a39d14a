package datapart

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/NebulousLabs/errors"
	"gitlab.com/columnstore/columnstore/crypto"
)

// Stream reads and checksums one (.bin, .mrk[2]) file pair belonging to a
// single column substream or secondary index. It exposes three logically
// parallel positions described in spec.md §3: a hash over the raw
// compressed bytes read, a hash over the decompressed bytes actually
// consumed, and a hash over the raw mark-file bytes.
type Stream struct {
	BaseName string
	BinExt   string
	MrkExt   string
	BinPath  string
	MrkPath  string

	granularity IndexGranularity
	hasRowCount bool

	binFile             *os.File
	compressedHashing   *crypto.HashingReader
	decoder             *blockDecoder
	uncompressedHashing *crypto.HashingReader

	markPosition int

	mrkFile    *os.File
	mrkHashing *crypto.HashingReader
	mrkSize    int64
}

// OpenStream opens the .bin and mark files for baseName under path and
// prepares the hashing chain described above. mrkExt selects the mark
// record layout (".mrk2" carries an explicit row count per mark).
func OpenStream(path, baseName, binExt, mrkExt string, granularity IndexGranularity) (*Stream, error) {
	binPath := filepath.Join(path, baseName+binExt)
	mrkPath := filepath.Join(path, baseName+mrkExt)

	binFile, err := os.Open(binPath)
	if err != nil {
		return nil, errors.Extend(err, errors.New("could not open "+binPath))
	}
	mrkFile, err := os.Open(mrkPath)
	if err != nil {
		binFile.Close()
		return nil, errors.Extend(err, errors.New("could not open "+mrkPath))
	}
	mrkInfo, err := mrkFile.Stat()
	if err != nil {
		binFile.Close()
		mrkFile.Close()
		return nil, errors.Extend(err, errors.New("could not stat "+mrkPath))
	}

	compressedHashing := crypto.NewHashingReader(binFile)
	decoder := newBlockDecoder(compressedHashing)

	s := &Stream{
		BaseName:            baseName,
		BinExt:              binExt,
		MrkExt:              mrkExt,
		BinPath:             binPath,
		MrkPath:             mrkPath,
		granularity:         granularity,
		hasRowCount:         mrkExt == ".mrk2",
		binFile:             binFile,
		compressedHashing:   compressedHashing,
		decoder:             decoder,
		uncompressedHashing: crypto.NewHashingReader(decoder),
		mrkFile:             mrkFile,
		mrkHashing:          crypto.NewHashingReader(mrkFile),
		mrkSize:             mrkInfo.Size(),
	}
	return s, nil
}

// Close releases the stream's file handles. Safe to call more than once.
func (s *Stream) Close() {
	if s.binFile != nil {
		s.binFile.Close()
		s.binFile = nil
	}
	if s.mrkFile != nil {
		s.mrkFile.Close()
		s.mrkFile = nil
	}
}

// mrkFileEOF reports whether the mark file has been fully consumed, based
// on its known total size rather than a destructive read-ahead.
func (s *Stream) mrkFileEOF() bool {
	return s.mrkHashing.Count() >= s.mrkSize
}

// decompressedEOF reports whether the decompressed stream has been fully
// consumed, refilling from the next compressed block if necessary.
func (s *Stream) decompressedEOF() (bool, error) {
	return s.decoder.eof()
}

// assertMark validates (or, if onlyRead is true, merely consumes) the
// next mark record against the stream's actual position, implementing
// the alternative-mark-at-block-boundary tolerance described in spec.md
// §4.2's assertMark protocol.
func (s *Stream) assertMark(onlyRead bool) error {
	mrkMark, mrkRows, err := readMark(s.mrkHashing, s.hasRowCount)
	if err != nil {
		return errors.Extend(err, errors.New(fmt.Sprintf("could not read mark %d from %s", s.markPosition, s.MrkPath)))
	}
	if !s.hasRowCount {
		mrkRows = s.granularity.GetMarkRows(s.markPosition)
	}

	hasAlternative := false
	var altMark MarkInCompressedFile

	if !s.decoder.hasPendingData() {
		hasAlternative = true
		altMark = MarkInCompressedFile{
			OffsetInCompressedFile:    uint64(s.compressedHashing.Count()) - uint64(s.decoder.sizeCompressed()),
			OffsetInDecompressedBlock: 0,
		}
		if mrkMark == altMark {
			s.markPosition++
			return nil
		}

		if err := s.decoder.next(); err != nil {
			return errors.Extend(err, errors.New("could not refill compressed block while checking mark"))
		}
		if s.decoder.atEOF {
			s.markPosition++
			return nil
		}
	}

	dataMark := MarkInCompressedFile{
		OffsetInCompressedFile:    uint64(s.compressedHashing.Count()) - uint64(s.decoder.sizeCompressed()),
		OffsetInDecompressedBlock: uint64(s.decoder.offset()),
	}

	if !onlyRead && (mrkMark != dataMark || mrkRows != s.granularity.GetMarkRows(s.markPosition)) {
		msg := fmt.Sprintf("incorrect mark: computed %s", dataMark.describe(s.granularity.GetMarkRows(s.markPosition)))
		if hasAlternative {
			msg += " or " + altMark.describe(s.granularity.GetMarkRows(s.markPosition))
		}
		msg += fmt.Sprintf(" in data, %s in %s file", mrkMark.describe(mrkRows), s.MrkPath)
		return errors.Extend(ErrIncorrectMark, errors.New(msg))
	}

	s.markPosition++
	return nil
}

// assertEnd verifies that the decompressed stream, the optional final
// mark, and the mark file itself have all reached exactly their expected
// end-of-stream positions.
func (s *Stream) assertEnd() error {
	eof, err := s.decompressedEOF()
	if err != nil {
		return err
	}
	if !eof {
		return errors.Extend(ErrCorruptedData, errors.New(fmt.Sprintf(
			"EOF expected in %s at position %d (compressed), %d (uncompressed)",
			s.BinPath, s.compressedHashing.Count(), s.uncompressedHashing.Count())))
	}

	if s.granularity.HasFinalMark() {
		_, finalRows, err := readMark(s.mrkHashing, s.hasRowCount)
		if err != nil {
			return errors.Extend(err, errors.New("could not read final mark from "+s.MrkPath))
		}
		if finalRows != 0 {
			return errors.Extend(ErrCorruptedData, errors.New(fmt.Sprintf(
				"incorrect final mark at the end of %s: expected 0 rows, got %d", s.MrkPath, finalRows)))
		}
	}

	if !s.mrkFileEOF() {
		return errors.Extend(ErrCorruptedData, errors.New(fmt.Sprintf(
			"EOF expected in %s at position %d", s.MrkPath, s.mrkHashing.Count())))
	}
	return nil
}

// saveChecksums records this stream's bin and mark file checksums into
// checksums, keyed by the base-name-plus-extension file names they
// correspond to on disk.
func (s *Stream) saveChecksums(checksums Checksums) {
	checksums[s.BaseName+s.BinExt] = Checksum{
		Size:             uint64(s.compressedHashing.Count()),
		Hash:             s.compressedHashing.Sum(),
		HasUncompressed:  true,
		UncompressedSize: uint64(s.uncompressedHashing.Count()),
		UncompressedHash: s.uncompressedHashing.Sum(),
	}
	checksums[s.BaseName+s.MrkExt] = Checksum{
		Size: uint64(s.mrkHashing.Count()),
		Hash: s.mrkHashing.Sum(),
	}
}

// describe renders a mark for use in an INCORRECT_MARK error message.
func (m MarkInCompressedFile) describe(rows int) string {
	return fmt.Sprintf("(offset_in_compressed_file = %d, offset_in_decompressed_block = %d, rows = %d)",
		m.OffsetInCompressedFile, m.OffsetInDecompressedBlock, rows)
}
