package datapart

import (
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/s2"
	"gitlab.com/columnstore/columnstore/crypto"
)

// blockHeaderSize is the width of the length-prefix header written before
// each compressed block: a 4-byte compressed payload size followed by a
// 4-byte uncompressed size.
const blockHeaderSize = 8

// blockDecoder turns a raw byte stream into a sequence of independently
// compressed blocks, decompressing one at a time and exposing the byte
// position within the current decompressed block plus the on-disk size of
// the block currently loaded. This is the Go stand-in for ClickHouse's
// paired CompressedReadBuffer/HashingReadBuffer: callers read decompressed
// bytes through it while a separate crypto.HashingReader underneath it
// tracks the raw compressed byte count and digest.
type blockDecoder struct {
	src     *crypto.HashingReader
	block   []byte
	pos     int
	onBlock int // size in bytes (header + payload) of the currently loaded block
	atEOF   bool
}

func newBlockDecoder(src *crypto.HashingReader) *blockDecoder {
	return &blockDecoder{src: src}
}

// hasPendingData reports whether there is unread data remaining in the
// block currently loaded.
func (d *blockDecoder) hasPendingData() bool {
	return d.pos < len(d.block)
}

// sizeCompressed returns the on-disk size (header + payload) of the block
// currently loaded, used to compute the alternative block-boundary mark.
func (d *blockDecoder) sizeCompressed() int {
	return d.onBlock
}

// offset returns the byte position within the currently loaded
// decompressed block.
func (d *blockDecoder) offset() int {
	return d.pos
}

// fetchNext decompresses the next block from the underlying stream. If
// the stream is exhausted, atEOF is set and block is emptied.
func (d *blockDecoder) fetchNext() error {
	header := make([]byte, blockHeaderSize)
	n, err := io.ReadFull(d.src, header)
	if err == io.EOF && n == 0 {
		d.atEOF = true
		d.block = nil
		d.pos = 0
		return nil
	}
	if err != nil {
		return err
	}
	compSize := binary.LittleEndian.Uint32(header[0:4])
	uncompSize := binary.LittleEndian.Uint32(header[4:8])

	payload := make([]byte, compSize)
	if _, err := io.ReadFull(d.src, payload); err != nil {
		return err
	}
	dst := make([]byte, uncompSize)
	decoded, err := s2.Decode(dst, payload)
	if err != nil {
		return err
	}
	d.block = decoded
	d.pos = 0
	d.onBlock = blockHeaderSize + int(compSize)
	d.atEOF = false
	return nil
}

// next forces a refill of the current block, used when assertMark needs
// to confirm that a block-boundary mark truly sits at the start of the
// next block rather than the end of the previous one.
func (d *blockDecoder) next() error {
	return d.fetchNext()
}

// eof reports whether the decoder has no more decompressed bytes to
// offer, fetching the next block if the current one is exhausted.
func (d *blockDecoder) eof() (bool, error) {
	if d.hasPendingData() {
		return false, nil
	}
	if err := d.fetchNext(); err != nil {
		return false, err
	}
	return d.atEOF, nil
}

// Read implements io.Reader over the decompressed byte stream.
func (d *blockDecoder) Read(p []byte) (int, error) {
	if !d.hasPendingData() {
		if err := d.fetchNext(); err != nil {
			return 0, err
		}
		if d.atEOF {
			return 0, io.EOF
		}
	}
	n := copy(p, d.block[d.pos:])
	d.pos += n
	return n, nil
}

// encodeBlock compresses payload and writes it to w as one framed block,
// the mirror-image of fetchNext. Used by test fixtures to build synthetic
// parts.
func encodeBlock(w io.Writer, payload []byte) error {
	comp := s2.Encode(nil, payload)
	header := make([]byte, blockHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(comp)))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(comp)
	return err
}
