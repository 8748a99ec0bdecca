package gc60

// NotRepresentable marks offsets r whose integers BlockBase+r share a factor
// with 30.
const NotRepresentable = -1

// Residues are the 16 offsets r in [0, 60) for which BlockBase+r is coprime
// to 30, in bit order. Bit b of a block stands for Residues[b] relative to
// the block base.
var Residues = [BlockBits]uint8{1, 3, 7, 9, 13, 19, 21, 27, 31, 33, 37, 39, 43, 49, 51, 57}

// ResidueMap maps a residue mod 60 to its bit index, or NotRepresentable.
type ResidueMap [Modulus]int8

// NewResidueMap builds the residue to bit mapping.
func NewResidueMap() ResidueMap {
	var m ResidueMap
	for i := range m {
		m[i] = NotRepresentable
	}
	for b, r := range Residues {
		m[r] = int8(b)
	}
	return m
}

// Bit returns the bit index of r mod 60, or NotRepresentable.
func (m *ResidueMap) Bit(r uint64) int {
	return int(m[r%Modulus])
}

// Locate returns the block and bit holding n. ok is false when n is below the
// first covered integer or falls on a residue removed by the wheel.
func (m *ResidueMap) Locate(n uint64) (block uint64, bit int, ok bool) {
	if n < firstCovered {
		return 0, NotRepresentable, false
	}
	off := n - BlockBase
	bit = m.Bit(off)
	if bit == NotRepresentable {
		return 0, NotRepresentable, false
	}
	return off / Modulus, bit, true
}

// Value returns the integer represented by bit of block.
func Value(block uint64, bit int) uint64 {
	return block*Modulus + BlockBase + uint64(Residues[bit])
}
