package gc60

import (
	"fmt"
	"math/bits"
	"runtime"
	"slices"
	"unsafe"
)

// cacheLineSize is the size of a CPU cache line in bytes.
const cacheLineSize = 64

// fullBlock has every candidate of a block set.
const fullBlock = uint16(0xFFFF)

// Bitset is the candidate array: one 16-bit block per 60 integers.
//
// Bits only ever go from 1 to 0 while sieving. Block and SetBlock are the
// public access path; the elimination loops clear bits in place.
type Bitset struct {
	raw    []byte   // Raw allocation to keep aligned memory alive for GC
	blocks []uint16 // Cache-line aligned block masks
}

// NewBitset allocates numBlocks blocks with every bit set.
// A runtime allocation failure is reported as ErrOutOfMemory.
func NewBitset(numBlocks uint64) (b *Bitset, err error) {
	if numBlocks == 0 {
		return nil, fmt.Errorf("%w: zero blocks", ErrInvalidLimit)
	}
	if numBlocks > NumBlocks(MaxLimit) {
		return nil, fmt.Errorf("%w: %d blocks", ErrOutOfMemory, numBlocks)
	}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); !ok {
				panic(r)
			}
			b = nil
			err = fmt.Errorf("%w: allocating %d blocks: %v", ErrOutOfMemory, numBlocks, r)
		}
	}()

	raw, blocks := makeAlignedUint16Slice(int(numBlocks))
	for i := range blocks {
		blocks[i] = fullBlock
	}
	return &Bitset{raw: raw, blocks: blocks}, nil
}

// makeAlignedUint16Slice allocates a cache-line aligned slice of uint16.
// Returns the raw byte slice (to keep alive for GC) and the aligned slice.
func makeAlignedUint16Slice(n int) ([]byte, []uint16) {
	raw := make([]byte, n*BlockBytes+cacheLineSize-1)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	offset := (cacheLineSize - int(addr%cacheLineSize)) % cacheLineSize
	aligned := unsafe.Slice((*uint16)(unsafe.Pointer(&raw[offset])), n)
	return raw, aligned
}

// Len returns the number of blocks.
func (b *Bitset) Len() uint64 {
	return uint64(len(b.blocks))
}

// Bytes returns the memory used by the block masks.
func (b *Bitset) Bytes() uint64 {
	return uint64(len(b.blocks)) * BlockBytes
}

// Block returns the mask of block i.
func (b *Bitset) Block(i uint64) uint16 {
	return b.blocks[i]
}

// SetBlock replaces the mask of block i.
func (b *Bitset) SetBlock(i uint64, mask uint16) {
	b.blocks[i] = mask
}

// Count returns the number of candidates still set.
func (b *Bitset) Count() uint64 {
	var n uint64
	for _, m := range b.blocks {
		n += uint64(bits.OnesCount16(m))
	}
	return n
}

// Equal reports whether both bitsets hold the same masks.
func (b *Bitset) Equal(o *Bitset) bool {
	return slices.Equal(b.blocks, o.blocks)
}

// Clone returns a deep copy.
func (b *Bitset) Clone() *Bitset {
	raw, blocks := makeAlignedUint16Slice(len(b.blocks))
	copy(blocks, b.blocks)
	return &Bitset{raw: raw, blocks: blocks}
}
