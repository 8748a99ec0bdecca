package gc60

import (
	"fmt"
	"math/bits"
	"math/rand/v2"
)

// Deterministic Miller-Rabin witnesses for every n < 2^64.
var millerRabinBases = [...]uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37}

// MillerRabin reports whether n is prime. With the fixed witness set the
// answer is exact for all 64-bit inputs.
func MillerRabin(n uint64) bool {
	if n < 2 {
		return false
	}
	for _, p := range millerRabinBases {
		if n%p == 0 {
			return n == p
		}
	}

	d := n - 1
	s := bits.TrailingZeros64(d)
	d >>= s

	for _, a := range millerRabinBases {
		x := powMod(a, d, n)
		if x == 1 || x == n-1 {
			continue
		}
		composite := true
		for r := 1; r < s; r++ {
			x = mulMod(x, x, n)
			if x == n-1 {
				composite = false
				break
			}
		}
		if composite {
			return false
		}
	}
	return true
}

// mulMod returns a*b mod m using a 128-bit intermediate product.
func mulMod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return bits.Rem64(hi, lo, m)
}

func powMod(base, exp, m uint64) uint64 {
	res := uint64(1)
	base %= m
	for exp > 0 {
		if exp&1 == 1 {
			res = mulMod(res, base, m)
		}
		base = mulMod(base, base, m)
		exp >>= 1
	}
	return res
}

// DivisorReport is the result of SampleDivisor.
type DivisorReport struct {
	Divisor uint64
	// Blocks are the block indexes that were inspected.
	Blocks []uint64
	// Checked is the number of surviving candidates examined.
	Checked int
	// Violations are survivors greater than Divisor that it divides.
	Violations []uint64
}

// SampleDivisor inspects n random blocks and reports every surviving
// candidate that is a proper multiple of divisor. On a correct sieve the
// report has no violations.
func (e *Engine) SampleDivisor(rng *rand.Rand, divisor uint64, n int) (DivisorReport, error) {
	if divisor < 2 {
		return DivisorReport{}, fmt.Errorf("%w: %d", ErrInvalidDivisor, divisor)
	}
	if !e.sieved {
		return DivisorReport{}, ErrNotSieved
	}

	rep := DivisorReport{Divisor: divisor}
	for range n {
		blk := rng.Uint64N(e.numBlocks)
		rep.Blocks = append(rep.Blocks, blk)
		m := e.bits.blocks[blk]
		for m != 0 {
			bit := bits.TrailingZeros16(m)
			m &= m - 1
			v := Value(blk, bit)
			rep.Checked++
			if v > divisor && v%divisor == 0 {
				rep.Violations = append(rep.Violations, v)
			}
		}
	}
	return rep, nil
}

// CheckMultiples walks the odd multiples p*p + 2*p*k of p and verifies that
// the first n of them represented in the bitset were eliminated. It returns
// how many were checked; a survivor is reported as ErrCompositeSurvived.
func (e *Engine) CheckMultiples(p uint64, n int) (int, error) {
	if p < 2 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDivisor, p)
	}
	if !e.sieved {
		return 0, ErrNotSieved
	}
	if p > e.limit/p {
		return 0, nil
	}

	end := CoverEnd(e.numBlocks)
	var checked int
	for v := p * p; checked < n && v <= end; v += 2 * p {
		blk, bit, ok := e.residues.Locate(v)
		if !ok {
			continue
		}
		checked++
		if e.bits.blocks[blk]&(1<<bit) != 0 {
			return checked, fmt.Errorf("%w: %d = %d * %d", ErrCompositeSurvived, v, p, v/p)
		}
	}
	return checked, nil
}

// CheckSmallDivisors returns the survivors in blocks [first, last] that are
// proper multiples of 7, 11, 13, 17 or 19.
func (e *Engine) CheckSmallDivisors(first, last uint64) []uint64 {
	last = min(last, e.numBlocks-1)
	var bad []uint64
	for blk := first; blk <= last; blk++ {
		m := e.bits.blocks[blk]
		for m != 0 {
			bit := bits.TrailingZeros16(m)
			m &= m - 1
			v := Value(blk, bit)
			for _, p := range [...]uint64{7, 11, 13, 17, 19} {
				if v > p && v%p == 0 {
					bad = append(bad, v)
					break
				}
			}
		}
	}
	return bad
}

// Sample returns n surviving candidates drawn from random blocks. Survivors
// of one block are taken in order until n is reached.
func (e *Engine) Sample(rng *rand.Rand, n int) ([]uint64, error) {
	if !e.sieved {
		return nil, ErrNotSieved
	}
	out := make([]uint64, 0, n)
	for len(out) < n {
		blk := rng.Uint64N(e.numBlocks)
		m := e.bits.blocks[blk]
		for m != 0 && len(out) < n {
			bit := bits.TrailingZeros16(m)
			m &= m - 1
			out = append(out, Value(blk, bit))
		}
	}
	return out, nil
}

// CertifyReport is the result of Certify.
type CertifyReport struct {
	Tested   int
	Passed   int
	Failures []uint64
}

// Certify runs Miller-Rabin on n random survivors.
func (e *Engine) Certify(rng *rand.Rand, n int) (CertifyReport, error) {
	sample, err := e.Sample(rng, n)
	if err != nil {
		return CertifyReport{}, err
	}
	var rep CertifyReport
	for _, v := range sample {
		rep.Tested++
		if MillerRabin(v) {
			rep.Passed++
		} else {
			rep.Failures = append(rep.Failures, v)
		}
	}
	return rep, nil
}
