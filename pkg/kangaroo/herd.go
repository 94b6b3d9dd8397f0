package kangaroo

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Herd types. Kangaroo g of a herd is tame when (g+firstType)&1 == TAME:
// herds interleave the two populations so a single batch advances both.
const (
	TAME uint32 = 0
	WILD uint32 = 1
)

// Herd is a batch of kangaroos stepped together so that one modular
// inversion serves the whole batch. x/y are the affine coordinates, xu the
// cached limb view of x, d the signed travelled distance mod n and sym the
// symmetry equivalence class (all zero without symmetry).
type Herd struct {
	px  []secp256k1.FieldVal
	py  []secp256k1.FieldVal
	xu  []uint256
	d   []secp256k1.ModNScalar
	sym []uint8
}

func newHerd(n int) *Herd {
	return &Herd{
		px:  make([]secp256k1.FieldVal, n),
		py:  make([]secp256k1.FieldVal, n),
		xu:  make([]uint256, n),
		d:   make([]secp256k1.ModNScalar, n),
		sym: make([]uint8, n),
	}
}

func (h *Herd) len() int { return len(h.d) }

// createHerd populates every slot of h with a fresh kangaroo, alternating
// types starting from firstType.
func (s *Solver) createHerd(h *Herd, firstType uint32) {
	for j := 0; j < h.len(); j++ {
		s.seedKangaroo(h, j, (uint32(j)+firstType)&1)
	}
}

// seedKangaroo (re)initialises slot idx of h as a kangaroo of the given
// type. Tame kangaroos draw d in [0, 2^rangeBits) and start at d·G; wild
// ones are shifted down by half the range width (a quarter with symmetry)
// so they walk centred on the normalised key, and start at K + d·G.
func (s *Solver) seedKangaroo(h *Herd, idx int, kType uint32) {
	bits := s.rangePower
	if s.symmetry {
		bits--
	}

	s.rngMu.Lock()
	du := randBits(s.rng, bits)
	s.rngMu.Unlock()

	d := du.toScalar()
	if kType == WILD {
		var shift secp256k1.ModNScalar
		if s.symmetry {
			shift = s.rangeWidthDiv4.toScalar()
		} else {
			shift = s.rangeWidthDiv2.toScalar()
		}
		shift.Negate()
		d.Add(&shift)
	}

	p := scalarBaseAffine(&d)
	if kType == WILD {
		p = addAffine(&s.keyToSearch, &p)
	}

	sym := uint8(0)
	if s.symmetry {
		// Normalise to the lower of the (x, ±y) pair.
		ny := negateY(&p.Y)
		if fieldToU256(&ny).cmp(fieldToU256(&p.Y)) < 0 {
			p.Y.Set(&ny)
			d.Negate()
			sym = 1
		}
	}

	h.px[idx].Set(&p.X)
	h.py[idx].Set(&p.Y)
	h.xu[idx] = fieldToU256(&p.X)
	h.d[idx] = d
	h.sym[idx] = sym
}
