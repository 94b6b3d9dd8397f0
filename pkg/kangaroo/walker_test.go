package kangaroo

import (
	"testing"
)

func TestWalker_StepPreservesInvariant(t *testing.T) {
	if err := checkWalk(false); err != nil {
		t.Fatal(err)
	}
}

func TestWalker_StepPreservesInvariantWithSymmetry(t *testing.T) {
	if err := checkWalk(true); err != nil {
		t.Fatal(err)
	}
}

func TestWalker_DPEmission(t *testing.T) {
	priv := uint256{0x5A5A5, 0, 1, 0} // somewhere in a wide range
	start := uint256{0, 0, 1, 0}
	end := uint256{0, 0, 2, 0}
	s := newTestSolver(t, start, end, priv)
	mustInit(t, s)

	herd := newHerd(CPUGrpSize)
	s.createHerd(herd, TAME)
	w := newCPUWorker(0, s, herd)

	// dpBits = 0 stores every step.
	s.setDP(0)
	hits := w.Step()
	if len(hits) != CPUGrpSize {
		t.Fatalf("dp 0 must emit every kangaroo: got %d of %d", len(hits), CPUGrpSize)
	}
	for i := range hits {
		if hits[i].KType != uint32(hits[i].KIdx)&1 {
			t.Fatalf("hit %d has wrong herd type", i)
		}
		if !s.isDP(hits[i].X[3]) {
			t.Fatalf("hit %d fails the DP predicate", i)
		}
	}

	// dpBits = 64 keeps only x-coordinates below 2^192 (zero top limb).
	s.setDP(64)
	hits = w.Step()
	if len(hits) != 0 {
		t.Fatalf("dp 64 emitted %d hits from a random walk", len(hits))
	}
}

func TestWalker_HitsMatchTableInvariant(t *testing.T) {
	// Walk, insert every DP, then re-derive each emitted hit from its
	// distance: tame hits must sit at d*G, wild at K + d*G, and every hit
	// must satisfy the DP predicate.
	priv := uint256{0x100000000 + 0x5A5A5}
	start := uint256{0x100000000}
	end := uint256{0x100000000 + 0x100000}
	s := newTestSolver(t, start, end, priv)
	mustInit(t, s)
	s.setDP(2)

	herd := newHerd(CPUGrpSize)
	s.createHerd(herd, TAME)
	w := newCPUWorker(0, s, herd)

	type full struct {
		x     uint256
		d     [4]uint64
		kType uint32
	}
	var seen []full
	for step := 0; step < 4 && !s.endOfSearch.Load(); step++ {
		hits := w.Step()
		for _, h := range hits {
			seen = append(seen, full{x: h.X, d: scalarToU256(&h.D), kType: h.KType})
		}
		s.commitHits(w, hits)
	}
	if len(seen) == 0 {
		t.Fatal("walk produced no distinguished points")
	}

	for i, e := range seen {
		d := uint256(e.d).toScalar()
		p := scalarBaseAffine(&d)
		if e.kType == WILD {
			p = addAffine(&s.keyToSearch, &p)
		}
		px := fieldToU256(&p.X)
		if px[0] != e.x[0] || px[1] != e.x[1] {
			t.Fatalf("hit %d: stored distance does not reproduce the x fingerprint", i)
		}
		if !s.isDP(e.x[3]) {
			t.Fatalf("hit %d violates the DP predicate", i)
		}
	}
}

func TestWalker_SameHerdCollisionResets(t *testing.T) {
	priv := uint256{0x100000000 + 0x5A5A5}
	start := uint256{0x100000000}
	end := uint256{0x100000000 + 0x100000}
	s := newTestSolver(t, start, end, priv)
	mustInit(t, s)
	s.setDP(0)

	herd := newHerd(4)
	s.createHerd(herd, TAME)
	w := newCPUWorker(0, s, herd)

	x := uint256{0xAA, 0xBB, 0xCC, 0}
	d1 := (uint256{10}).toScalar()
	d2 := (uint256{20}).toScalar()
	before := herd.xu[0]

	s.commitHits(w, []DpHit{{X: x, D: d1, KIdx: 0, KType: TAME}})
	s.commitHits(w, []DpHit{{X: x, D: d2, KIdx: 0, KType: TAME}})

	if s.deadKang.Load() != 1 {
		t.Fatalf("dead kangaroo count = %d, want 1", s.deadKang.Load())
	}
	if herd.xu[0] == before {
		t.Error("colliding kangaroo was not replaced")
	}
	if s.endOfSearch.Load() {
		t.Error("a same-herd collision must not end the search")
	}
}
