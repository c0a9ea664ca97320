package snomedstore

import "errors"

// Sentinel error kinds. Callers should compare with
// errors.Is; BackendFailure/StoreCorrupt style errors wrap these.
var (
	// ErrStoreCorrupt is returned when the container envelope fails a
	// structural check (unknown cache version, bad tag byte, truncated
	// segment). Fatal at load time.
	ErrStoreCorrupt = errors.New("snomedstore: store corrupt")
	// ErrCodeNotFound is returned by locate-style lookups on a miss. Never
	// panics or wraps a lower-level error - a plain miss.
	ErrCodeNotFound = errors.New("snomedstore: code not found")
	// ErrMisalignedOffset surfaces a programmer bug: a record offset that
	// is not a multiple of its segment's stride.
	ErrMisalignedOffset = errors.New("snomedstore: misaligned offset")
)
