package gc60

// Hit is one periodic elimination: from block Start on, every Prime-th block
// is ANDed with Mask. Mask is the complement of the residue bits the prime's
// multiples hit in that block.
type Hit struct {
	Start uint64
	Mask  uint16

	next uint64 // first block not yet processed by the segmented sweep
}

// HitGroup holds every hit of one prime. All hits share the stride Prime.
type HitGroup struct {
	Prime uint64
	Hits  []Hit
}

// Reset rewinds the sweep cursors to the first hit of each record.
func (g *HitGroup) Reset() {
	for i := range g.Hits {
		g.Hits[i].next = g.Hits[i].Start
	}
}

// Precomputer derives hit groups from the residue walk of a prime.
// It reuses one scratch buffer between builds; returned groups never alias it.
// A Precomputer is not safe for concurrent use.
type Precomputer struct {
	residues ResidueMap
	scratch  []Hit
}

// NewPrecomputer returns a Precomputer using residues.
func NewPrecomputer(residues ResidueMap) *Precomputer {
	return &Precomputer{
		residues: residues,
		scratch:  make([]Hit, 0, BlockBits),
	}
}

// Build returns the hit group of prime p (p >= 7, coprime to 30).
//
// Only odd multiples from p*p on are walked: n = p*p + 2*p*k. The residue of
// n-10 mod 60 comes back to its start after at most 60 steps, and by then the
// block index has advanced by exactly p, so one walk describes the pattern for
// the whole bitset.
func (pc *Precomputer) Build(p uint64) HitGroup {
	pc.scratch = pc.scratch[:0]

	off := p*p - BlockBase
	residue := off % Modulus
	block := off / Modulus
	delta := (2 * p) % Modulus
	carry := (2 * p) / Modulus

	initial := residue
	var (
		current uint64
		mask    uint16
		dirty   bool
	)
	for first := true; first || residue != initial; first = false {
		if block != current && dirty {
			pc.scratch = append(pc.scratch, Hit{Start: current, Mask: ^mask})
			mask, dirty = 0, false
		}
		if bit := pc.residues.Bit(residue); bit != NotRepresentable {
			if !dirty {
				current = block
			}
			mask |= 1 << bit
			dirty = true
		}

		next := residue + delta
		block += carry + next/Modulus
		residue = next % Modulus
	}
	if dirty {
		pc.scratch = append(pc.scratch, Hit{Start: current, Mask: ^mask})
	}

	hits := make([]Hit, len(pc.scratch))
	copy(hits, pc.scratch)
	g := HitGroup{Prime: p, Hits: hits}
	g.Reset()
	return g
}

// Database is the ordered list of hit groups for every sieving prime.
type Database struct {
	Groups []HitGroup
}

// BuildDatabase builds one hit group per prime, in the order given.
func (pc *Precomputer) BuildDatabase(primes []uint64) *Database {
	db := &Database{Groups: make([]HitGroup, 0, len(primes))}
	for _, p := range primes {
		db.Groups = append(db.Groups, pc.Build(p))
	}
	return db
}

// Reset rewinds the cursors of every group.
func (db *Database) Reset() {
	for i := range db.Groups {
		db.Groups[i].Reset()
	}
}

// NumHits returns the total number of hit records.
func (db *Database) NumHits() int {
	var n int
	for _, g := range db.Groups {
		n += len(g.Hits)
	}
	return n
}
