package kangaroo

import (
	"math"
	"math/big"
	"testing"
)

func TestNewJumpTable_MeanWindow(t *testing.T) {
	for _, bits := range []int{16, 32, 64, 96, 125} {
		for _, sym := range []bool{false, true} {
			jt := NewJumpTable(bits, sym)
			m := jumpTargetBits(bits, sym)
			lo := math.Pow(2.0, float64(m)-1.05)
			hi := math.Pow(2.0, float64(m)-0.95)
			if jt.AvgDistance() <= lo || jt.AvgDistance() >= hi {
				t.Errorf("bits=%d sym=%v: avg 2^%.3f outside (2^%.2f, 2^%.2f)",
					bits, sym, math.Log2(jt.AvgDistance()), float64(m)-1.05, float64(m)-0.95)
			}
		}
	}
}

func TestNewJumpTable_Deterministic(t *testing.T) {
	a := NewJumpTable(64, false)
	b := NewJumpTable(64, false)
	for i := 0; i < NbJump; i++ {
		if !a.distance[i].Equals(&b.distance[i]) {
			t.Fatalf("jump %d differs between two builds", i)
		}
	}
}

func TestNewJumpTable_PointsMatchDistances(t *testing.T) {
	jt := NewJumpTable(48, false)
	for i := 0; i < NbJump; i++ {
		if jt.distance[i].IsZero() {
			t.Fatalf("jump %d has zero distance", i)
		}
		p := scalarBaseAffine(&jt.distance[i])
		if !p.X.Equals(jt.px[i].Normalize()) || !p.Y.Equals(jt.py[i].Normalize()) {
			t.Fatalf("jump %d point is not distance*G", i)
		}
	}
}

func TestNewJumpTable_SymmetryResidues(t *testing.T) {
	bits := 64
	jt := NewJumpTable(bits, true)
	if jt.u == nil || jt.v == nil {
		t.Fatal("symmetry table must carry the residue multipliers")
	}
	if !jt.u.ProbablyPrime(20) || !jt.v.ProbablyPrime(20) || jt.u.Cmp(jt.v) >= 0 {
		t.Fatal("u, v must be increasing probable primes")
	}
	for i := 0; i < NbJump; i++ {
		d := scalarToU256(&jt.distance[i]).toBig()
		mod := new(big.Int)
		if i < NbJump/2 {
			mod.Mod(d, jt.u)
		} else {
			mod.Mod(d, jt.v)
		}
		// Distance 1 replaces a zero draw and escapes the residue class.
		if mod.Sign() != 0 && d.Cmp(big.NewInt(1)) != 0 {
			t.Errorf("jump %d not in its residue class", i)
		}
	}
}

func TestSelectJump_Range(t *testing.T) {
	jt := NewJumpTable(64, false)
	for _, x := range []uint256{{0}, {31}, {32}, {^uint64(0)}} {
		j := jt.selectJump(x, false, 0)
		if j < 0 || j >= NbJump {
			t.Fatalf("selectJump out of range: %d", j)
		}
		if j != int(x[0]%NbJump) {
			t.Fatalf("selectJump must be x.limb0 %% %d", NbJump)
		}
	}
	// Symmetry: class picks the half.
	if j := jt.selectJump(uint256{5}, true, 1); j < NbJump/2 {
		t.Fatal("symmetry class 1 must select the upper half")
	}
	if j := jt.selectJump(uint256{5}, true, 0); j >= NbJump/2 {
		t.Fatal("symmetry class 0 must select the lower half")
	}
}
