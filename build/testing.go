// Package build provides the scratch-directory helper used by this
// module's Sia-style table-driven tests.
package build

import (
	"os"
	"path/filepath"
)

// TestingDir is the directory that contains all of the files and folders
// created during testing.
var TestingDir = filepath.Join(os.TempDir(), "columnstoreTesting")

// TempDir joins the provided directories and prefixes them with the package
// testing directory, removing any stale data left behind by a previous run.
func TempDir(dirs ...string) string {
	path := filepath.Join(TestingDir, filepath.Join(dirs...))
	os.RemoveAll(path)
	return path
}
