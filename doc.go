// Package gc60 finds the primes up to a bound with a wheel-compressed,
// segmented sieve of Eratosthenes.
//
// # Layout
//
// Multiples of 2, 3 and 5 are removed by a mod-60 wheel: only the 16 integers
// of each 60 that are coprime to 30 are represented. Each group of 60 integers becomes one 16-bit
// block, where block i covers the integers 60*i + 10 + r for
// r in [Residues]:
//
//	block 0:  11 13 17 19 23 29 31 37 41 43 47 49 53 59 61 67
//	block 1:  71 73 77 79 83 89 91 97 ...
//
// Memory cost is 2 bytes per 60 integers, about 33 MB per billion. The
// integers 2, 3, 5 and 7 lie below block 0 and are reported separately.
//
// # Hit records
//
// For a sieving prime p only the odd multiples p*p + 2*p*k can land on a
// represented residue. Walking them, the residue mod 60 comes back to its
// starting value after 30 steps, and by then the block index has moved by
// exactly p. So the whole elimination pattern of p is a handful of
// (start block, mask) pairs, each replayed at stride p:
//
//	for i := start; i < numBlocks; i += p {
//	    blocks[i] &= mask
//	}
//
// [Precomputer] derives these pairs in O(60) per prime and [Apply] replays
// them. Elimination is an AND of independent masks, so it is idempotent and
// the order in which primes are applied does not matter.
//
// # Segmentation
//
// Applying one prime across a multi-gigabyte bitset before moving to the next
// re-streams the array from memory once per prime. [Engine.Sieve] instead
// walks the bitset in segments of [DefaultSegmentBlocks] blocks and applies
// every prime to a segment before moving on, carrying a per-record cursor
// from one segment to the next.
//
// [Engine.SieveParallel] computes the first hit of each record inside a
// segment directly from the segment start, which makes segments independent.
// Segments are cache-line aligned and handed to a bounded pool of workers.
//
// # Usage
//
//	e, err := gc60.New(1_000_000_000)
//	if err != nil {
//	    return err // ErrOutOfMemory if the bitset does not fit
//	}
//	defer e.Close()
//
//	e.Sieve()
//	fmt.Println(e.Count())          // 50847534
//	fmt.Println(e.IsPrime(999999937)) // true
//
// # Memory
//
// By default New budgets the bitset against the memory currently available
// on the host and returns [ErrOutOfMemory] rather than letting the runtime
// abort. Use [WithMemoryLimit] to set an explicit budget.
//
// # Persistence
//
// [Engine.Encode] stores the bitset as its 16-bit words in block order behind
// a small header with an xxh3 checksum, optionally compressed with LZ4 or
// zstd. [UnmarshalBinary] restores it.
//
// # Verification
//
// [MillerRabin], [Engine.Certify], [Engine.SampleDivisor] and
// [Engine.CheckMultiples] consume the finished bitset to cross-check it. They
// are not used by the sieve itself.
package gc60
