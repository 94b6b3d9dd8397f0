package kangaroo

import (
	"math/big"
	"testing"
)

// A tame kangaroo at distance 0x777 and a wild one at 0x333 collide on a
// key K = 0x444*G relative to the range start: the candidate with the wild
// distance negated (0x777 - 0x333) resolves and the reported key is
// 0x444 + rangeStart.
func TestCollisionResolution_KnownPair(t *testing.T) {
	rangeStart := uint256{0x1000}
	priv := uint256{0x1000 + 0x444}
	s := newTestSolver(t, rangeStart, uint256{0x1000 + 0x10000}, priv)
	mustInit(t, s)

	dT := (uint256{0x777}).toScalar()
	dW := (uint256{0x333}).toScalar()

	// Both walkers sit on the same x: dT*G == K' + dW*G with K' = 0x444*G.
	p := scalarBaseAffine(&dT)
	x := fieldToU256(&p.X)

	if status, _, _ := s.table.Add(x, &dT, TAME); status != AddOK {
		t.Fatal("tame insert failed")
	}
	status, kDist, kType := s.table.Add(x, &dW, WILD)
	if status != AddCollisionCross {
		t.Fatal("expected a cross-herd collision")
	}
	if !s.collisionCheck(&kDist, kType, &dW, WILD) {
		t.Fatal("collision resolution failed")
	}

	if !s.endOfSearch.Load() {
		t.Fatal("a solved key must end the search")
	}
	if s.solution == nil {
		t.Fatal("no solution recorded")
	}
	want := new(big.Int).SetUint64(0x1000 + 0x444)
	if s.solution.PrivateKey.Cmp(want) != 0 {
		t.Fatalf("recovered 0x%x, want 0x%x", s.solution.PrivateKey, want)
	}
}

// An inconsistent cross collision fails all four candidates: it is
// reported, nothing is solved, and the walk would continue.
func TestCollisionResolution_FailedCandidates(t *testing.T) {
	rangeStart := uint256{0x1000}
	priv := uint256{0x1000 + 0x444}
	s := newTestSolver(t, rangeStart, uint256{0x1000 + 0x10000}, priv)
	mustInit(t, s)

	dT := (uint256{0x9999}).toScalar()
	dW := (uint256{0x1}).toScalar()
	if s.collisionCheck(&dT, TAME, &dW, WILD) {
		t.Fatal("bogus collision must not resolve")
	}
	if s.endOfSearch.Load() {
		t.Fatal("failed resolution must not end the search")
	}
	if s.solution != nil {
		t.Fatal("failed resolution must not record a solution")
	}
}

// The negated-key branch: a collision implying -K resolves through the
// keyToSearchNeg comparison and still reports the true private key.
func TestCollisionResolution_NegatedKey(t *testing.T) {
	rangeStart := uint256{0x1000}
	priv := uint256{0x1000 + 0x444}
	s := newTestSolver(t, rangeStart, uint256{0x1000 + 0x10000}, priv)
	mustInit(t, s)

	// x(dT*G) equals x(K' + dW*G) also when dT = -(0x444 + dW): the
	// symmetric point shares the x-coordinate.
	dW := (uint256{0x333}).toScalar()
	dT := (uint256{0x444 + 0x333}).toScalar()
	dT.Negate()

	p := scalarBaseAffine(&dT)
	x := fieldToU256(&p.X)

	if status, _, _ := s.table.Add(x, &dT, TAME); status != AddOK {
		t.Fatal("tame insert failed")
	}
	status, kDist, kType := s.table.Add(x, &dW, WILD)
	if status != AddCollisionCross {
		t.Fatal("expected a cross-herd collision")
	}
	if !s.collisionCheck(&kDist, kType, &dW, WILD) {
		t.Fatal("collision resolution failed on the negated branch")
	}
	want := new(big.Int).SetUint64(0x1000 + 0x444)
	if s.solution == nil || s.solution.PrivateKey.Cmp(want) != 0 {
		t.Fatalf("negated branch recovered the wrong key")
	}
}
