package kangaroo

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// RunCheck is the -check self test: it validates the jump table window,
// the batch inversion, the distance packing, the DP mask, the herd
// invariants before and after eight walked steps (checked against a direct
// recomputation) and a cross-library scalar multiplication. Returns the
// first failure.
func RunCheck() error {
	fmt.Printf("Checking jump table...\n")
	for _, bits := range []int{32, 64, 96, 125} {
		for _, sym := range []bool{false, true} {
			jt := NewJumpTable(bits, sym)
			m := jumpTargetBits(bits, sym)
			lo := math.Pow(2.0, float64(m)-1.05)
			hi := math.Pow(2.0, float64(m)-0.95)
			if jt.AvgDistance() <= lo || jt.AvgDistance() >= hi {
				return fmt.Errorf("jump table avg 2^%.2f outside window for %d bits (sym=%v)",
					math.Log2(jt.AvgDistance()), bits, sym)
			}
		}
	}

	fmt.Printf("Checking batch inversion...\n")
	rng := rand.New(rand.NewSource(1))
	vals := make([]secp256k1.FieldVal, 64)
	ref := make([]secp256k1.FieldVal, 64)
	scratch := make([]secp256k1.FieldVal, 64)
	for i := range vals {
		u := randBits(rng, 250)
		vals[i] = u.toField()
		vals[i].Normalize()
		if vals[i].IsZero() {
			vals[i].SetInt(1)
		}
		ref[i].Set(&vals[i]).Inverse().Normalize()
	}
	batchInvert(vals, scratch)
	for i := range vals {
		if !vals[i].Normalize().Equals(&ref[i]) {
			return fmt.Errorf("batch inversion mismatch at %d", i)
		}
	}

	fmt.Printf("Checking distance packing...\n")
	for i := 0; i < 1000; i++ {
		u := randBits(rng, 120)
		d := u.toScalar()
		if i%2 == 1 {
			d.Negate()
		}
		kType := uint32(i % 2)
		got, gotType := unpackDist(packDist(&d, kType))
		if gotType != kType || !got.Equals(&d) {
			return fmt.Errorf("distance pack round-trip failed at %d", i)
		}
	}

	fmt.Printf("Checking DP mask...\n")
	s := New().WithSeed(1)
	s.setDP(0)
	if !s.isDP(^uint64(0)) {
		return fmt.Errorf("dp 0 must accept every x")
	}
	s.setDP(64)
	if s.isDP(1) || !s.isDP(0) {
		return fmt.Errorf("dp 64 must accept only zero high limbs")
	}

	fmt.Printf("Checking herd and walk invariants...\n")
	if err := checkWalk(false); err != nil {
		return err
	}
	if err := checkWalk(true); err != nil {
		return err
	}

	fmt.Printf("Checking against btcec...\n")
	for i := 0; i < 32; i++ {
		u := randBits(rng, 255)
		d := u.toScalar()
		p := scalarBaseAffine(&d)
		db := scalarToU256(&d)
		bx, by := btcec.S256().ScalarBaseMult(func() []byte { b := db.bytesBE(); return b[:] }())
		pu, err := u256FromBig(bx)
		if err != nil {
			return err
		}
		pv, err := u256FromBig(by)
		if err != nil {
			return err
		}
		if pu != fieldToU256(&p.X) || pv != fieldToU256(&p.Y) {
			return fmt.Errorf("btcec cross check failed at %d", i)
		}
	}

	fmt.Printf("Check OK\n")
	return nil
}

// checkWalk builds a tiny search, steps one batch and verifies that every
// kangaroo still satisfies its herd invariant: tame at d·G, wild at
// K + d·G, position matching up to the symmetry fold.
func checkWalk(symmetry bool) error {
	priv := (uint256{0x5A5A5, 0, 0, 0}).toScalar()
	pub := scalarBaseAffine(&priv)
	fx := fieldToU256(&pub.X)
	fy := fieldToU256(&pub.Y)
	pubKey, err := pubKeyFromCoords(fx, fy)
	if err != nil {
		return err
	}

	s := New().WithSeed(42).WithSymmetry(symmetry)
	s.rangeStart = uint256{}
	s.rangeEnd = uint256{1 << 20, 0, 0, 0}
	s.keys = append(s.keys, pubKey)
	s.table = NewHashTable()
	s.rng = rand.New(rand.NewSource(42))
	s.totalRW = CPUGrpSize
	s.initRange()
	s.jt = NewJumpTable(s.rangePower, symmetry)
	s.setDP(4)
	s.keyIdx = 0
	s.initSearchKey()

	herd := newHerd(CPUGrpSize)
	s.createHerd(herd, TAME)
	w := newCPUWorker(0, s, herd)

	verify := func(stage string) error {
		for g := 0; g < herd.len(); g++ {
			ok := false
			for _, sign := range []bool{false, true} {
				d := herd.d[g]
				if sign {
					if !symmetry {
						break
					}
					// A symmetry fold negates d together with y, which for
					// wild kangaroos leaves only the x-coordinate pinned.
					d.Negate()
				}
				p := scalarBaseAffine(&d)
				if uint32(g)&1 == WILD {
					p = addAffine(&s.keyToSearch, &p)
				}
				if !p.X.Equals(herd.px[g].Normalize()) {
					continue
				}
				if symmetry {
					ny := negateY(&p.Y)
					ok = p.Y.Equals(herd.py[g].Normalize()) || ny.Equals(herd.py[g].Normalize())
				} else {
					ok = p.Y.Equals(herd.py[g].Normalize())
				}
				if ok {
					break
				}
			}
			if !ok {
				return fmt.Errorf("%s: kangaroo %d violates herd invariant (sym=%v)", stage, g, symmetry)
			}
		}
		return nil
	}

	if err := verify("herd creation"); err != nil {
		return err
	}
	for i := 0; i < 8; i++ {
		w.Step()
	}
	return verify("walk")
}
