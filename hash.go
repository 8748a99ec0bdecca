package gc60

import "github.com/zeebo/xxh3"

// checksum returns the xxh3 hash of a raw block payload.
func checksum(payload []byte) uint64 {
	return xxh3.Hash(payload)
}
