// Package persist provides helper functions for saving and loading objects
// to and from disk durably. It is used throughout the module for writing
// sidecar files such as columns.txt and checksums.txt, and for the checker's
// own log output.
package persist

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/NebulousLabs/errors"
)

const persistDir = "persist"

// tempSuffix is the suffix applied to the temporary file used while
// performing an atomic save.
const tempSuffix = "_temp"

// ErrBadFilenameSuffix is returned when a filename ending in tempSuffix is
// passed to a load function; loading the temp file directly is almost
// always a mistake by the caller.
var ErrBadFilenameSuffix = errors.New("cannot load using a filename that contains the temp suffix")

// Metadata contains the header and version of the object being persisted. A
// file will only load successfully if its on-disk metadata matches the
// metadata provided to the load call.
type Metadata struct {
	Header  string
	Version string
}

// RandomSuffix returns a 20-character random string suitable for appending
// to temporary filenames to reduce the chance of collisions.
func RandomSuffix() string {
	b := make([]byte, 10)
	_, err := rand.Read(b)
	if err != nil {
		panic("persist: failed to read randomness: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// safeFile wraps an *os.File that is written under a temporary name and
// only renamed to its final name on Commit. If the caller never calls
// Commit, the temporary file is discarded.
type safeFile struct {
	f         *os.File
	finalName string
}

// NewSafeFile creates a new safeFile backed by a temporary file in the same
// directory as finalName, so the eventual rename is atomic on POSIX
// filesystems.
func NewSafeFile(finalName string) (*safeFile, error) {
	abs, err := filepath.Abs(finalName)
	if err != nil {
		return nil, errors.Extend(err, errors.New("could not resolve absolute path"))
	}
	dir := filepath.Dir(abs)
	tmp, err := ioutil.TempFile(dir, filepath.Base(abs)+"*"+tempSuffix)
	if err != nil {
		return nil, errors.Extend(err, errors.New("could not create temp file"))
	}
	return &safeFile{f: tmp, finalName: abs}, nil
}

// Name returns the current (temporary) name of the file.
func (sf *safeFile) Name() string {
	return sf.f.Name()
}

// Write writes to the underlying temporary file.
func (sf *safeFile) Write(b []byte) (int, error) {
	return sf.f.Write(b)
}

// Close closes the underlying file without committing it. Calling Close
// after Commit returns the error from closing an already-closed file.
func (sf *safeFile) Close() error {
	return sf.f.Close()
}

// Commit flushes and syncs the temporary file's contents to disk, then
// atomically renames it to the safeFile's final name.
func (sf *safeFile) Commit() error {
	if err := sf.f.Sync(); err != nil {
		return errors.Extend(err, errors.New("could not sync temp file"))
	}
	tmpName := sf.f.Name()
	if err := sf.f.Close(); err != nil {
		return errors.Extend(err, errors.New("could not close temp file"))
	}
	if err := os.Rename(tmpName, sf.finalName); err != nil {
		return errors.Extend(err, errors.New("could not rename temp file to final name"))
	}
	return nil
}

// copyFile duplicates the contents of src into dst. Nothing in this package
// calls it at present.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
