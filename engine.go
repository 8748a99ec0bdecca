package gc60

import (
	"context"
	"fmt"
	"iter"
	"math/bits"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jcalabro/gc60/resource"
)

// Engine owns the residue map, the candidate bitset and the hit database of
// one search bound.
//
// An Engine is not safe for concurrent sieving. Once Sieve or SieveParallel
// returned, IsPrime, Count and Primes may be called from many goroutines.
type Engine struct {
	limit     uint64
	numBlocks uint64
	residues  ResidueMap
	bits      *Bitset
	db        *Database
	sieved    bool

	lease *resource.Reservation

	segmentBlocks uint64
	workers       int
	log           *zap.Logger
}

// New allocates the candidate bitset for every integer up to limit and
// precomputes the hit groups of the sieving primes. The bitset starts with
// every candidate set; call Sieve or SieveParallel to eliminate composites.
//
// Returns ErrInvalidLimit if limit is 0 or above MaxLimit, and ErrOutOfMemory
// if the bitset does not fit the memory budget or cannot be allocated.
func New(limit uint64, opts ...Option) (*Engine, error) {
	if limit == 0 || limit > MaxLimit {
		return nil, fmt.Errorf("%w: %d (valid range: 1-%d)", ErrInvalidLimit, limit, MaxLimit)
	}

	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	numBlocks := NumBlocks(limit)
	bytes := int64(numBlocks * BlockBytes)

	budget, err := memoryBudget(o)
	if err != nil {
		o.logger.Warn("memory budget unavailable, allocating unchecked", zap.Error(err))
	}
	lease, err := budget.Reserve(bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: bitset for limit %d: %v", ErrOutOfMemory, limit, err)
	}

	b, err := NewBitset(numBlocks)
	if err != nil {
		lease.Release()
		return nil, err
	}

	residues := NewResidueMap()
	primes := SievingPrimes(isqrt(CoverEnd(numBlocks)))
	db := NewPrecomputer(residues).BuildDatabase(primes)

	o.logger.Debug("hit database built",
		zap.Uint64("limit", limit),
		zap.Uint64("blocks", numBlocks),
		zap.Int("primes", len(db.Groups)),
		zap.Int("hits", db.NumHits()),
	)

	return &Engine{
		limit:         limit,
		numBlocks:     numBlocks,
		residues:      residues,
		bits:          b,
		db:            db,
		lease:         lease,
		segmentBlocks: o.segmentBlocks,
		workers:       o.workers,
		log:           o.logger,
	}, nil
}

// memoryBudget picks the budget the bitset is reserved against. A nil budget
// reserves unchecked.
func memoryBudget(o options) (*resource.Budget, error) {
	switch {
	case o.budget != nil:
		return o.budget, nil
	case o.memoryLimit > 0:
		return resource.NewBudget(o.memoryLimit), nil
	case o.memoryLimit < 0:
		return nil, nil
	default:
		return resource.HostBudget()
	}
}

// Apply clears the multiples described by g across the whole bitset:
// b[start + k*p] &= mask for every hit, while in range.
func Apply(b *Bitset, g *HitGroup) {
	applyRange(b.blocks, g, 0, uint64(len(b.blocks)))
}

// applyRange applies g to the blocks in [lo, hi), locating the first hit of
// each record in the range arithmetically.
func applyRange(blocks []uint16, g *HitGroup, lo, hi uint64) {
	blocks = blocks[:hi]
	p := g.Prime
	for _, h := range g.Hits {
		for i := firstAtOrAfter(h.Start, p, lo); i < hi; i += p {
			blocks[i] &= h.Mask
		}
	}
}

// sweepSegment applies g to the blocks below hi, resuming every record at its
// cursor and storing where it stopped.
func sweepSegment(blocks []uint16, g *HitGroup, hi uint64) {
	blocks = blocks[:hi]
	p := g.Prime
	for j := range g.Hits {
		h := &g.Hits[j]
		i := h.next
		for ; i < hi; i += p {
			blocks[i] &= h.Mask
		}
		h.next = i
	}
}

// firstAtOrAfter returns the smallest start + k*p that is >= lo.
func firstAtOrAfter(start, p, lo uint64) uint64 {
	if start >= lo {
		return start
	}
	return start + (lo-start+p-1)/p*p
}

// Sieve eliminates every composite from the bitset, one segment at a time.
// Within a segment all primes are applied before moving on, so the segment
// stays in cache while it is being rewritten.
func (e *Engine) Sieve() {
	e.db.Reset()

	blocks := e.bits.blocks
	var segments int
	for lo := uint64(0); lo < e.numBlocks; lo += e.segmentBlocks {
		hi := min(lo+e.segmentBlocks, e.numBlocks)
		for gi := range e.db.Groups {
			sweepSegment(blocks, &e.db.Groups[gi], hi)
		}
		segments++
	}

	e.sieved = true
	e.log.Debug("sieve completed",
		zap.Uint64("limit", e.limit),
		zap.Int("segments", segments),
	)
}

// SieveParallel is Sieve with segments spread over the configured workers.
// Each segment finds its hits arithmetically, so segments are independent;
// segment bounds are cache-line aligned so workers never share a line.
//
// If ctx is cancelled the bitset is left partially sieved, the error is
// returned and the engine reports ErrNotSieved until a later pass completes.
func (e *Engine) SieveParallel(ctx context.Context) error {
	e.sieved = false

	seg := alignUp(e.segmentBlocks, segmentAlign)
	blocks := e.bits.blocks
	groups := e.db.Groups

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	var segments int
	for lo := uint64(0); lo < e.numBlocks; lo += seg {
		if gctx.Err() != nil {
			break
		}
		hi := min(lo+seg, e.numBlocks)
		segments++
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for gi := range groups {
				applyRange(blocks, &groups[gi], lo, hi)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.sieved = true
	e.log.Debug("parallel sieve completed",
		zap.Uint64("limit", e.limit),
		zap.Int("segments", segments),
		zap.Int("workers", e.workers),
	)
	return nil
}

func alignUp(n, align uint64) uint64 {
	return (n + align - 1) / align * align
}

// IsPrime reports whether n is prime. Integers above the covered range report
// false, and so does every n until a sieve pass has completed.
func (e *Engine) IsPrime(n uint64) bool {
	if n < 2 || !e.sieved {
		return false
	}
	if n < firstCovered {
		for _, p := range wheelPrimes {
			if n == p {
				return true
			}
		}
		return false
	}
	block, bit, ok := e.residues.Locate(n)
	if !ok || block >= e.numBlocks {
		return false
	}
	return e.bits.blocks[block]&(1<<bit) != 0
}

// Count returns the number of primes <= Limit, or 0 before sieving.
func (e *Engine) Count() uint64 {
	if !e.sieved {
		return 0
	}
	var n uint64
	for _, p := range wheelPrimes {
		if p <= e.limit {
			n++
		}
	}
	if e.limit < firstCovered {
		return n
	}

	// every block before the one holding limit lies entirely below it
	last := (e.limit - BlockBase) / Modulus
	for _, m := range e.bits.blocks[:last] {
		n += uint64(bits.OnesCount16(m))
	}
	m := e.bits.blocks[last]
	for bit := range BlockBits {
		if m&(1<<bit) != 0 && Value(last, bit) <= e.limit {
			n++
		}
	}
	return n
}

// Primes returns an iterator over the primes <= Limit in increasing order.
func (e *Engine) Primes() iter.Seq[uint64] {
	return e.PrimesBetween(0, e.limit)
}

// PrimesBetween returns an iterator over the primes in [from, to], in
// increasing order. to is clamped to Limit. The iterator yields nothing
// before sieving.
func (e *Engine) PrimesBetween(from, to uint64) iter.Seq[uint64] {
	to = min(to, e.limit)
	return func(yield func(uint64) bool) {
		if !e.sieved {
			return
		}
		for _, p := range wheelPrimes {
			if p >= from && p <= to && !yield(p) {
				return
			}
		}
		if to < firstCovered {
			return
		}

		var start uint64
		if from > BlockBase {
			start = (from - BlockBase) / Modulus
		}
		for blk := start; blk < e.numBlocks; blk++ {
			m := e.bits.blocks[blk]
			for m != 0 {
				bit := bits.TrailingZeros16(m)
				m &= m - 1
				v := Value(blk, bit)
				if v > to {
					return
				}
				if v >= from && !yield(v) {
					return
				}
			}
			if Value(blk, BlockBits-1) >= to {
				return
			}
		}
	}
}

// Limit returns the search bound.
func (e *Engine) Limit() uint64 {
	return e.limit
}

// NumBlocks returns the number of blocks in the bitset.
func (e *Engine) NumBlocks() uint64 {
	return e.numBlocks
}

// Sieved reports whether a sieve pass has completed.
func (e *Engine) Sieved() bool {
	return e.sieved
}

// Bitset returns the candidate bitset.
func (e *Engine) Bitset() *Bitset {
	return e.bits
}

// Database returns the hit groups of the sieving primes.
func (e *Engine) Database() *Database {
	return e.db
}

// Residues returns the residue map used by the engine.
func (e *Engine) Residues() *ResidueMap {
	return &e.residues
}

// Close releases the memory reservation of the bitset. The engine must not
// be used afterwards.
func (e *Engine) Close() error {
	e.lease.Release()
	e.bits = nil
	e.db = nil
	return nil
}
