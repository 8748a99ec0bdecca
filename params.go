package gc60

import "math"

const (
	// Modulus is the wheel size. Multiples of 2, 3 and 5 never appear in the bitset.
	Modulus = 60
	// BlockBits is the number of candidates per block (offsets r with 10+r coprime to 30).
	BlockBits = 16
	// BlockBase is the offset of block 0: block i covers 60*i + BlockBase + r.
	BlockBase = 10
	// BlockBytes is the memory cost of one block.
	BlockBytes = 2

	// DefaultSegmentBlocks is the default segment size in blocks (64 KiB of
	// bitset), small enough to stay in L2 on common hardware.
	DefaultSegmentBlocks = 32768

	// segmentAlign keeps parallel segments on cache line boundaries
	// (32 blocks * 2 bytes = 64 bytes).
	segmentAlign = cacheLineSize / BlockBytes

	// MaxLimit is the largest supported search bound.
	MaxLimit = uint64(1) << 50
)

// firstCovered is the smallest integer represented in the bitset (block 0, residue 1).
const firstCovered = BlockBase + 1

// wheelPrimes are the primes below firstCovered. They are not representable
// in the bitset and are reported separately.
var wheelPrimes = [...]uint64{2, 3, 5, 7}

// NumBlocks returns the number of blocks needed to cover every integer up to limit:
// ceil(limit/60) + 1.
func NumBlocks(limit uint64) uint64 {
	return (limit+Modulus-1)/Modulus + 1
}

// CoverEnd returns the largest integer represented by a bitset of numBlocks blocks.
func CoverEnd(numBlocks uint64) uint64 {
	if numBlocks == 0 {
		return 0
	}
	return (numBlocks-1)*Modulus + BlockBase + uint64(Residues[BlockBits-1])
}

// BitsetBytes returns the memory needed for the candidate bitset of limit.
func BitsetBytes(limit uint64) uint64 {
	return NumBlocks(limit) * BlockBytes
}

// isqrt returns floor(sqrt(n)).
func isqrt(n uint64) uint64 {
	r := uint64(math.Sqrt(float64(n)))
	// float64 rounding can be off by one in either direction for large n
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
