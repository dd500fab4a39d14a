package crypto

import (
	"io"

	"github.com/cespare/xxhash/v2"
)

// HashingReader wraps an io.Reader, transparently feeding every byte read
// through it into a running xxhash digest while tracking how many bytes
// have passed through so far. Streams use two of these in series: one over
// the raw (compressed) file, recording the compressed size and digest, and
// one over the decompressed bytes it yields, recording the uncompressed
// size and digest; both are compared against the part's checksums.txt
// sidecar.
type HashingReader struct {
	r      io.Reader
	digest *xxhash.Digest
	count  int64
}

// NewHashingReader wraps r with a running hash and byte counter.
func NewHashingReader(r io.Reader) *HashingReader {
	return &HashingReader{
		r:      r,
		digest: xxhash.New(),
	}
}

// Read implements io.Reader, forwarding to the wrapped reader and folding
// every byte read into the running digest.
func (hr *HashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		hr.digest.Write(p[:n])
		hr.count += int64(n)
	}
	return n, err
}

// Count returns the number of bytes read through the reader so far.
func (hr *HashingReader) Count() int64 {
	return hr.count
}

// Sum returns the Hash of all bytes read through the reader so far. It
// does not reset the running digest; call Reset to start over.
func (hr *HashingReader) Sum() Hash {
	return uint64ToHash(hr.digest.Sum64())
}

// Reset clears the running digest and byte counter without affecting the
// wrapped reader.
func (hr *HashingReader) Reset() {
	hr.digest.Reset()
	hr.count = 0
}
