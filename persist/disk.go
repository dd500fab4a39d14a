package persist

import (
	"github.com/NebulousLabs/errors"
)

// SaveFileSync writes data to filename through a temp file, syncing the
// temp file to disk before renaming it into place. Unlike SaveJSON, no
// metadata or checksum envelope is added; this is used for sidecar files
// (columns.txt) where the on-disk format is defined
// elsewhere and a wrapping envelope would break compatibility with
// readers that parse the bytes directly.
func SaveFileSync(data []byte, filename string) error {
	sf, err := NewSafeFile(filename)
	if err != nil {
		return errors.Extend(err, errors.New("could not create safe file"))
	}
	if _, err := sf.Write(data); err != nil {
		sf.Close()
		return errors.Extend(err, errors.New("could not write data"))
	}
	return sf.Commit()
}
