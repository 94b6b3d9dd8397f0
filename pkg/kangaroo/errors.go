package kangaroo

import "errors"

// Error kinds. Callers match with errors.Is; the CLI maps ErrInput and
// ErrIO to a non-zero exit before any walker starts.
var (
	// ErrInput covers bad hex, off-curve keys and malformed configs.
	ErrInput = errors.New("input error")

	// ErrIO covers file open/read/write failures.
	ErrIO = errors.New("i/o error")

	// ErrWorkFileCorrupt covers magic mismatches, truncated buckets and
	// inconsistent entry counts in a work file.
	ErrWorkFileCorrupt = errors.New("work file corrupt")

	// ErrResource covers device init/allocate/upload/readback failures.
	ErrResource = errors.New("resource error")
)
