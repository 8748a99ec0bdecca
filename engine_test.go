package gc60

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"strconv"
	"testing"
	"unsafe"

	"github.com/jcalabro/gc60/resource"
)

// unsafePointer returns the unsafe.Pointer for a value.
// Used in tests to verify cache-line alignment.
func unsafePointer[T any](v *T) unsafe.Pointer {
	return unsafe.Pointer(v)
}

func newSieved(t testing.TB, limit uint64, opts ...Option) *Engine {
	t.Helper()
	e, err := New(limit, opts...)
	if err != nil {
		t.Fatalf("New(%d) failed: %v", limit, err)
	}
	e.Sieve()
	return e
}

// freshBitset returns an all-ones bitset with the engine's geometry.
func freshBitset(t testing.TB, e *Engine) *Bitset {
	t.Helper()
	b, err := NewBitset(e.NumBlocks())
	if err != nil {
		t.Fatalf("NewBitset failed: %v", err)
	}
	return b
}

func TestIsPrimeMatchesTrialDivision(t *testing.T) {
	const limit = 1_000_000
	e := newSieved(t, limit)

	for n := uint64(0); n <= limit; n++ {
		if got, want := e.IsPrime(n), TrialDivision(n); got != want {
			t.Fatalf("IsPrime(%d) = %v, want %v", n, got, want)
		}
	}
	if got := e.Count(); got != 78498 {
		t.Errorf("Count() = %d, want 78498", got)
	}
}

func TestPrimesBelowThousand(t *testing.T) {
	e := newSieved(t, 1000)

	if got := e.Count(); got != 168 {
		t.Errorf("Count() = %d, want 168", got)
	}

	primes := slices.Collect(e.Primes())
	if len(primes) != 168 {
		t.Fatalf("Primes() yielded %d values, want 168", len(primes))
	}
	head := []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}
	if !slices.Equal(primes[:len(head)], head) {
		t.Errorf("first primes: got %v, want %v", primes[:len(head)], head)
	}
	if primes[len(primes)-1] != 997 {
		t.Errorf("last prime: got %d, want 997", primes[len(primes)-1])
	}

	// the last block reaches past the limit; 1009 is covered but not counted
	if !e.IsPrime(1009) {
		t.Error("expected 1009 to be reported prime by the covered bitset")
	}
}

func TestSmallLimits(t *testing.T) {
	for limit := uint64(1); limit <= 400; limit++ {
		e := newSieved(t, limit)

		var want []uint64
		for n := uint64(0); n <= limit; n++ {
			if TrialDivision(n) {
				want = append(want, n)
			}
		}
		got := slices.Collect(e.Primes())
		if !slices.Equal(got, want) {
			t.Fatalf("limit %d: Primes() = %v, want %v", limit, got, want)
		}
		if e.Count() != uint64(len(want)) {
			t.Fatalf("limit %d: Count() = %d, want %d", limit, e.Count(), len(want))
		}
	}
}

func TestWholeBitsetAuthoritative(t *testing.T) {
	e := newSieved(t, 12345)
	end := CoverEnd(e.NumBlocks())
	for n := uint64(0); n <= end; n++ {
		if got, want := e.IsPrime(n), TrialDivision(n); got != want {
			t.Fatalf("IsPrime(%d) = %v, want %v (cover end %d)", n, got, want, end)
		}
	}
	if e.IsPrime(end + 2) {
		t.Error("values past the covered range must report false")
	}
}

func TestApplySevenOnly(t *testing.T) {
	e, err := New(1000)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b := freshBitset(t, e)
	g := NewPrecomputer(NewResidueMap()).Build(7)
	Apply(b, &g)

	var cleared []uint64
	for blk := uint64(0); blk < b.Len(); blk++ {
		for bit := range BlockBits {
			v := Value(blk, bit)
			isSet := b.Block(blk)&(1<<bit) != 0
			if isSet == (v%7 == 0) {
				t.Errorf("value %d: set=%v after sieving by 7", v, isSet)
			}
			if !isSet {
				cleared = append(cleared, v)
			}
		}
	}
	slices.Sort(cleared)
	want := []uint64{49, 77, 91, 119, 133}
	if !slices.Equal(cleared[:len(want)], want) {
		t.Errorf("first cleared values: got %v, want %v", cleared[:len(want)], want)
	}
}

func TestMonotonicElimination(t *testing.T) {
	e, err := New(200_000)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b := freshBitset(t, e)

	prev := b.Clone()
	for gi := range e.Database().Groups {
		Apply(b, &e.Database().Groups[gi])
		for i := uint64(0); i < b.Len(); i++ {
			if b.Block(i)&^prev.Block(i) != 0 {
				t.Fatalf("prime %d set bits in block %d: %016b -> %016b",
					e.Database().Groups[gi].Prime, i, prev.Block(i), b.Block(i))
			}
		}
		prev = b.Clone()
	}
}

// onlyCleared fails if next has a bit set that prev does not.
func onlyCleared(t *testing.T, prev, next *Bitset, step string) {
	t.Helper()
	for i := uint64(0); i < next.Len(); i++ {
		if next.Block(i)&^prev.Block(i) != 0 {
			t.Fatalf("%s set bits in block %d: %016b -> %016b", step, i, prev.Block(i), next.Block(i))
		}
	}
}

func TestMonotonicSegmentSweep(t *testing.T) {
	e, err := New(200_000)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b := freshBitset(t, e)
	db := e.Database()
	db.Reset()

	const seg = 97
	prev := b.Clone()
	for lo := uint64(0); lo < b.Len(); lo += seg {
		hi := min(lo+seg, b.Len())
		for gi := range db.Groups {
			sweepSegment(b.blocks, &db.Groups[gi], hi)
			onlyCleared(t, prev, b, "sweep of prime "+strconv.FormatUint(db.Groups[gi].Prime, 10))
			prev = b.Clone()
		}
	}

	ref := newSieved(t, 200_000)
	if !b.Equal(ref.Bitset()) {
		t.Error("segment sweep differs from Sieve")
	}
}

func TestMonotonicRangeApply(t *testing.T) {
	e, err := New(200_000)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b := freshBitset(t, e)
	groups := e.Database().Groups

	seg := alignUp(100, segmentAlign)
	prev := b.Clone()
	// segments in reverse, as workers may finish them in any order
	var bounds []uint64
	for lo := uint64(0); lo < b.Len(); lo += seg {
		bounds = append(bounds, lo)
	}
	slices.Reverse(bounds)
	for _, lo := range bounds {
		hi := min(lo+seg, b.Len())
		for gi := range groups {
			applyRange(b.blocks, &groups[gi], lo, hi)
			onlyCleared(t, prev, b, "range apply of prime "+strconv.FormatUint(groups[gi].Prime, 10))
			prev = b.Clone()
		}
	}

	par, err := New(200_000, WithWorkers(4), WithSegmentBlocks(100))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	before := par.Bitset().Clone()
	if err := par.SieveParallel(context.Background()); err != nil {
		t.Fatalf("SieveParallel failed: %v", err)
	}
	onlyCleared(t, before, par.Bitset(), "SieveParallel")
	if !b.Equal(par.Bitset()) {
		t.Error("range application differs from SieveParallel")
	}
}

func TestQueriesBeforeSieve(t *testing.T) {
	e, err := New(1000)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for _, n := range []uint64{2, 7, 11, 49, 997} {
		if e.IsPrime(n) {
			t.Errorf("IsPrime(%d) = true before sieving", n)
		}
	}
	if got := e.Count(); got != 0 {
		t.Errorf("Count() = %d before sieving, want 0", got)
	}
	if got := slices.Collect(e.Primes()); len(got) != 0 {
		t.Errorf("Primes() yielded %v before sieving", got)
	}

	e.Sieve()
	if e.IsPrime(49) || !e.IsPrime(997) || e.Count() != 168 {
		t.Error("queries wrong after sieving")
	}
}

func TestApplyIdempotent(t *testing.T) {
	e, err := New(100_000)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for gi := range e.Database().Groups {
		g := &e.Database().Groups[gi]

		once := freshBitset(t, e)
		Apply(once, g)
		twice := once.Clone()
		Apply(twice, g)

		if !once.Equal(twice) {
			t.Fatalf("prime %d: second application changed the bitset", g.Prime)
		}
	}
}

func TestApplyOrderIndependent(t *testing.T) {
	e, err := New(300_000)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	groups := e.Database().Groups

	forward := freshBitset(t, e)
	for gi := range groups {
		Apply(forward, &groups[gi])
	}

	backward := freshBitset(t, e)
	for gi := len(groups) - 1; gi >= 0; gi-- {
		Apply(backward, &groups[gi])
	}

	rng := rand.New(rand.NewPCG(1, 2))
	shuffled := freshBitset(t, e)
	for _, gi := range rng.Perm(len(groups)) {
		Apply(shuffled, &groups[gi])
	}

	if !forward.Equal(backward) {
		t.Error("forward and backward order differ")
	}
	if !forward.Equal(shuffled) {
		t.Error("forward and shuffled order differ")
	}

	e.Sieve()
	if !forward.Equal(e.Bitset()) {
		t.Error("segmented sieve differs from whole-range application")
	}
}

func TestSegmentSizes(t *testing.T) {
	const limit = 500_000
	ref := newSieved(t, limit)

	for _, seg := range []uint64{1, 32, 100, 1000, 4093, 1 << 20} {
		e := newSieved(t, limit, WithSegmentBlocks(seg))
		if !e.Bitset().Equal(ref.Bitset()) {
			t.Errorf("segment size %d: bitset differs from default", seg)
		}
	}
}

func TestSieveTwice(t *testing.T) {
	e := newSieved(t, 50_000, WithSegmentBlocks(64))
	first := e.Bitset().Clone()
	e.Sieve()
	if !first.Equal(e.Bitset()) {
		t.Error("second sieve pass changed the bitset")
	}
}

func TestSieveParallelMatchesSequential(t *testing.T) {
	const limit = 2_000_000
	ref := newSieved(t, limit)

	for _, workers := range []int{1, 3, 8} {
		for _, seg := range []uint64{32, 1000, DefaultSegmentBlocks} {
			e, err := New(limit, WithWorkers(workers), WithSegmentBlocks(seg))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if err := e.SieveParallel(context.Background()); err != nil {
				t.Fatalf("SieveParallel failed: %v", err)
			}
			if !e.Sieved() {
				t.Error("expected engine to be sieved")
			}
			if !e.Bitset().Equal(ref.Bitset()) {
				t.Errorf("workers=%d seg=%d: parallel bitset differs", workers, seg)
			}
		}
	}
}

func TestSieveParallelCancelled(t *testing.T) {
	e, err := New(1_000_000, WithSegmentBlocks(32))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := e.SieveParallel(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if e.Sieved() {
		t.Error("cancelled pass must not mark the engine sieved")
	}
}

func TestPrimesBetween(t *testing.T) {
	e := newSieved(t, 10_000)

	tests := []struct {
		from, to uint64
	}{
		{0, 0},
		{0, 10},
		{2, 7},
		{8, 10},
		{11, 67},
		{60, 130},
		{9973, 9973},
		{5000, 5100},
		{100, 50},
		{9000, 20_000},
	}
	for _, tt := range tests {
		var want []uint64
		for n := tt.from; n <= min(tt.to, e.Limit()); n++ {
			if TrialDivision(n) {
				want = append(want, n)
			}
		}
		got := slices.Collect(e.PrimesBetween(tt.from, tt.to))
		if !slices.Equal(got, want) {
			t.Errorf("PrimesBetween(%d, %d) = %v, want %v", tt.from, tt.to, got, want)
		}
	}

	// early break from the iterator
	var n int
	for range e.Primes() {
		n++
		if n == 5 {
			break
		}
	}
	if n != 5 {
		t.Errorf("expected to stop after 5 primes, got %d", n)
	}
}

func TestNewInvalidLimit(t *testing.T) {
	for _, limit := range []uint64{0, MaxLimit + 1} {
		if _, err := New(limit); !errors.Is(err, ErrInvalidLimit) {
			t.Errorf("New(%d): expected ErrInvalidLimit, got %v", limit, err)
		}
	}
}

func TestNewMemoryLimit(t *testing.T) {
	_, err := New(1_000_000, WithMemoryLimit(1024))
	if !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}

	e, err := New(1_000_000, WithMemoryLimit(int64(BitsetBytes(1_000_000))))
	if err != nil {
		t.Fatalf("exact budget should fit: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if _, err := New(1_000_000, WithMemoryLimit(-1)); err != nil {
		t.Errorf("unlimited budget failed: %v", err)
	}
}

func TestNewSharedBudget(t *testing.T) {
	size := int64(BitsetBytes(1_000_000))
	budget := resource.NewBudget(size + size/2)

	first, err := New(1_000_000, WithMemoryBudget(budget))
	if err != nil {
		t.Fatalf("first engine should fit: %v", err)
	}
	if budget.InUse() != size {
		t.Errorf("InUse = %d, want %d", budget.InUse(), size)
	}

	// a generous per-engine limit does not bypass the shared budget
	if _, err := New(1_000_000, WithMemoryBudget(budget), WithMemoryLimit(-1)); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("second engine: expected ErrOutOfMemory, got %v", err)
	}
	if budget.InUse() != size {
		t.Errorf("failed New leaked a reservation: InUse = %d", budget.InUse())
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if budget.InUse() != 0 {
		t.Errorf("InUse = %d after Close, want 0", budget.InUse())
	}

	second, err := New(1_000_000, WithMemoryBudget(budget))
	if err != nil {
		t.Fatalf("engine after Close should fit: %v", err)
	}
	second.Close()
}

func TestNewBitset(t *testing.T) {
	b, err := NewBitset(100)
	if err != nil {
		t.Fatalf("NewBitset failed: %v", err)
	}
	if b.Len() != 100 || b.Bytes() != 200 {
		t.Errorf("got %d blocks / %d bytes, want 100 / 200", b.Len(), b.Bytes())
	}
	if b.Count() != 100*BlockBits {
		t.Errorf("fresh bitset count %d, want %d", b.Count(), 100*BlockBits)
	}

	b.SetBlock(3, 0x00F0)
	if b.Block(3) != 0x00F0 {
		t.Errorf("Block(3) = %04x, want 00f0", b.Block(3))
	}

	if _, err := NewBitset(0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit for zero blocks, got %v", err)
	}
	if _, err := NewBitset(NumBlocks(MaxLimit) + 1); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("expected ErrOutOfMemory for oversized bitset, got %v", err)
	}
}

func TestCacheLineAlignment(t *testing.T) {
	e, err := New(100_000)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	addr := uintptr(unsafePointer(&e.Bitset().blocks[0]))
	if addr%cacheLineSize != 0 {
		t.Errorf("bitset blocks not 64-byte aligned: address %x", addr)
	}

	clone := e.Bitset().Clone()
	if addr := uintptr(unsafePointer(&clone.blocks[0])); addr%cacheLineSize != 0 {
		t.Errorf("cloned blocks not 64-byte aligned: address %x", addr)
	}
}

func TestNumBlocks(t *testing.T) {
	tests := []struct {
		limit, blocks uint64
	}{
		{1, 2},
		{60, 2},
		{61, 3},
		{1000, 18},
		{2_000_000_000, 33_333_335},
	}
	for _, tt := range tests {
		if got := NumBlocks(tt.limit); got != tt.blocks {
			t.Errorf("NumBlocks(%d) = %d, want %d", tt.limit, got, tt.blocks)
		}
		if CoverEnd(tt.blocks) < tt.limit {
			t.Errorf("limit %d: cover end %d below limit", tt.limit, CoverEnd(tt.blocks))
		}
	}
}

func TestFirstAtOrAfter(t *testing.T) {
	tests := []struct {
		start, p, lo, want uint64
	}{
		{5, 7, 0, 5},
		{5, 7, 5, 5},
		{5, 7, 6, 12},
		{5, 7, 12, 12},
		{5, 7, 13, 19},
		{0, 11, 100, 110},
	}
	for _, tt := range tests {
		if got := firstAtOrAfter(tt.start, tt.p, tt.lo); got != tt.want {
			t.Errorf("firstAtOrAfter(%d, %d, %d) = %d, want %d", tt.start, tt.p, tt.lo, got, tt.want)
		}
	}
}

func TestIsqrt(t *testing.T) {
	for _, n := range []uint64{0, 1, 2, 3, 4, 15, 16, 17, 1 << 52, 1<<52 - 1, 999_999_999_999_999_999} {
		r := isqrt(n)
		if r*r > n || (r+1)*(r+1) <= n {
			t.Errorf("isqrt(%d) = %d", n, r)
		}
	}
}

func TestLargeBoundSample(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 2e9 sieve in short mode")
	}

	e, err := New(2_000_000_000, WithSegmentBlocks(DefaultSegmentBlocks))
	if err != nil {
		t.Skipf("cannot allocate bitset: %v", err)
	}
	defer e.Close()
	if err := e.SieveParallel(context.Background()); err != nil {
		t.Fatalf("SieveParallel failed: %v", err)
	}

	sample, err := e.Sample(rand.New(rand.NewPCG(42, 7)), 100)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	for _, v := range sample {
		if !TrialDivision(v) {
			t.Errorf("false positive: %d survived the sieve", v)
		}
	}
}
