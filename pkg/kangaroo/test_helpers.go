package kangaroo

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// testSeed keeps runs reproducible.
const testSeed = 0x600DCAFE

// testPubHex returns the compressed public key of a private scalar.
func testPubHex(t *testing.T, priv uint256) string {
	t.Helper()
	if priv.isZero() {
		t.Fatal("test private key must be non-zero")
	}
	b := priv.bytesBE()
	key := secp256k1.PrivKeyFromBytes(b[:])
	return hex.EncodeToString(key.PubKey().SerializeCompressed())
}

// newTestSolver builds a solver over [start, end) targeting priv·G, with a
// fast status tick and a fixed seed.
func newTestSolver(t *testing.T, start, end, priv uint256) *Solver {
	t.Helper()
	s := New().
		WithRangeHex(start.hex(), end.hex()).
		WithPublicKeyHex(testPubHex(t, priv)).
		WithSeed(testSeed)
	s.tick = 20 * time.Millisecond
	return s
}

// mustInit runs the pre-walk initialisation and the first key setup.
func mustInit(t *testing.T, s *Solver) {
	t.Helper()
	if err := s.initSearch(context.Background()); err != nil {
		t.Fatalf("initSearch failed: %v", err)
	}
	s.keyIdx = 0
	s.initSearchKey()
}

// solveWithTimeout runs Solve under a deadline so a broken search fails
// the test instead of hanging it.
func solveWithTimeout(t *testing.T, s *Solver, d time.Duration) []Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	results, err := s.Solve(ctx)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	return results
}
