package datapart

import "github.com/NebulousLabs/errors"

// Sentinel errors mirroring the error codes of the checker this package is
// modeled on. Check wraps these with errors.Extend to build a context
// chain (mark number, row number, file offsets) as it propagates a
// failure up through nested streams and columns.
var (
	// ErrCorruptedData signals a structural problem: a stream did not
	// end where expected, a final mark had a non-zero row count, or a
	// sidecar checksum disagreed with the computed one.
	ErrCorruptedData = errors.New("corrupted data")

	// ErrLogicalError signals an internal invariant violation, such as a
	// column type asking to deserialize from a substream that was never
	// opened, or a primary key component type that cannot read a key value.
	ErrLogicalError = errors.New("logical error")

	// ErrIncorrectMark signals that a mark file's recorded position
	// disagrees with the actual stream position.
	ErrIncorrectMark = errors.New("incorrect mark")

	// ErrEmptyListOfColumns signals that columns.txt named no columns.
	ErrEmptyListOfColumns = errors.New("empty list of columns passed")

	// ErrSizesOfColumnsDontMatch signals that a column's row count
	// disagreed with count.txt or with an earlier column in the same part.
	ErrSizesOfColumnsDontMatch = errors.New("sizes of columns don't match")
)
