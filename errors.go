package seenindex

import "errors"

var (
	ErrInvalidSize   = errors.New("seenindex: exponent must satisfy 3 <= n <= 31")
	ErrInvalidRounds = errors.New("seenindex: rounds must be at least 1")
	ErrAllocation    = errors.New("seenindex: allocation exceeds memory limit")
	ErrSizeMismatch  = errors.New("seenindex: filter sizes differ")
	ErrIO            = errors.New("seenindex: i/o failure")
	ErrCorruptStream = errors.New("seenindex: corrupt compressed stream")
	ErrReleased      = errors.New("seenindex: filter has been released")

	ErrCorruptManifest = errors.New("seenindex: corrupt manifest")
	ErrNotFound        = errors.New("seenindex: filter not found")
	ErrExists          = errors.New("seenindex: filter already exists")
	ErrInvalidName     = errors.New("seenindex: invalid filter name")
	ErrClosed          = errors.New("seenindex: store is closed")
	ErrCorruptLog      = errors.New("seenindex: corrupt write-ahead log record")
)
