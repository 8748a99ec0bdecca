package gc60

// SievingPrimes returns the primes p with 7 <= p <= bound, in increasing order.
// These are the primes whose multiples the bitset has to eliminate; 2, 3 and 5
// are handled by the wheel.
func SievingPrimes(bound uint64) []uint64 {
	var primes []uint64
	for p := uint64(7); p <= bound; p += 2 {
		if TrialDivision(p) {
			primes = append(primes, p)
		}
	}
	return primes
}

// TrialDivision reports whether n is prime by testing divisors 6k±1 up to sqrt(n).
func TrialDivision(n uint64) bool {
	if n < 2 {
		return false
	}
	if n < 4 {
		return true
	}
	if n%2 == 0 || n%3 == 0 {
		return false
	}
	for i := uint64(5); i <= n/i; i += 6 {
		if n%i == 0 || n%(i+2) == 0 {
			return false
		}
	}
	return true
}
