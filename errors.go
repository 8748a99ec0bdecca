package gc60

import "errors"

var (
	// ErrInvalidLimit is returned when the search bound is zero or above MaxLimit.
	ErrInvalidLimit = errors.New("gc60: invalid limit")

	// ErrOutOfMemory is returned when the candidate bitset cannot be allocated.
	ErrOutOfMemory = errors.New("gc60: out of memory")

	// ErrNotSieved is returned by operations that need a completed sieve.
	ErrNotSieved = errors.New("gc60: bitset not sieved")

	// ErrInvalidDivisor is returned when a verification divisor is 0 or 1.
	ErrInvalidDivisor = errors.New("gc60: divisor must be at least 2")

	// ErrCompositeSurvived is returned when a verification finds a composite
	// that the sieve failed to eliminate.
	ErrCompositeSurvived = errors.New("gc60: composite survived the sieve")

	// ErrInvalidData is returned when the serialized data is invalid or corrupted.
	ErrInvalidData = errors.New("gc60: invalid serialized data")

	// ErrUnsupportedVersion is returned when the serialization version is not supported.
	ErrUnsupportedVersion = errors.New("gc60: unsupported serialization version")

	// ErrUnsupportedCompression is returned for an unknown compression byte.
	ErrUnsupportedCompression = errors.New("gc60: unsupported compression")

	// ErrChecksumMismatch is returned when the payload does not match its checksum.
	ErrChecksumMismatch = errors.New("gc60: checksum mismatch")
)
