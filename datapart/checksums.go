package datapart

import (
	"fmt"

	"github.com/NebulousLabs/errors"
	"gitlab.com/columnstore/columnstore/crypto"
	"gitlab.com/columnstore/columnstore/persist"
)

// checksumsMetadata tags persisted checksums.txt sidecars so LoadJSON can
// reject a file that isn't one.
var checksumsMetadata = persist.Metadata{Header: "Data Part Checksums", Version: "v1.0.0"}

// Checksum records the size and digest of one file in a data part. A file
// that carries compressed data additionally records the size and digest of
// its decompressed form.
type Checksum struct {
	Size             uint64
	Hash             crypto.Hash
	HasUncompressed  bool
	UncompressedSize uint64
	UncompressedHash crypto.Hash
}

// Checksums maps a file name (relative to the part directory) to its
// computed checksum.
type Checksums map[string]Checksum

// CheckEqual compares c (the checksums.txt sidecar, as Check calls it)
// against other (the checksums computed from the part's contents),
// returning ErrCorruptedData if the file sets or any individual checksum
// differ. When strict is false, a file present in only one of the two
// sets is ignored (used nowhere in this module currently, but preserved
// to mirror the original's strict flag).
func (c Checksums) CheckEqual(other Checksums, strict bool) error {
	for name, sum := range c {
		otherSum, ok := other[name]
		if !ok {
			if strict {
				return errors.Extend(ErrCorruptedData, errors.New("computed checksums are missing file present in sidecar: "+name))
			}
			continue
		}
		if sum != otherSum {
			return errors.Extend(ErrCorruptedData, errors.New(fmt.Sprintf(
				"checksum mismatch for file %s: sidecar %+v, computed %+v", name, sum, otherSum)))
		}
	}
	if strict {
		for name := range other {
			if _, ok := c[name]; !ok {
				return errors.Extend(ErrCorruptedData, errors.New("checksums.txt is missing file: "+name))
			}
		}
	}
	return nil
}

// SaveChecksums persists c to filename as JSON via persist.SaveJSON.
func SaveChecksums(c Checksums, filename string) error {
	return persist.SaveJSON(checksumsMetadata, c, filename)
}

// LoadChecksums loads a checksums.txt sidecar previously written by
// SaveChecksums.
func LoadChecksums(filename string) (Checksums, error) {
	var c Checksums
	if err := persist.LoadJSON(checksumsMetadata, &c, filename); err != nil {
		return nil, err
	}
	return c, nil
}
