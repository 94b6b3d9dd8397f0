package kangaroo

import (
	"math/rand"
	"testing"
)

func TestU256_HexRoundTrip(t *testing.T) {
	cases := []uint256{
		{},
		{1},
		{0x123, 0, 0, 0},
		{0xFFFFFFFFFFFFFFFF, 0xFFFFFFFFFFFFFFFF, 0xFFFFFFFFFFFFFFFF, 0xFFFFFFFFFFFFFFFF},
		{0xDEADBEEF, 0xCAFE, 0x600D, 1},
	}
	for _, u := range cases {
		got, err := u256FromHex(u.hex())
		if err != nil {
			t.Fatalf("u256FromHex(%s): %v", u.hex(), err)
		}
		if got != u {
			t.Errorf("round trip mismatch: %v != %v", got, u)
		}
	}

	if (uint256{}).hex() != "0" {
		t.Errorf("zero should render as \"0\", got %q", (uint256{}).hex())
	}
	if len((uint256{1}).hex64()) != 64 {
		t.Errorf("hex64 must always be 64 chars")
	}
}

func TestU256_HexRejectsBadInput(t *testing.T) {
	for _, s := range []string{"", "xyz", "112233445566778899AABBCCDDEEFF112233445566778899AABBCCDDEEFF11223344"} {
		if _, err := u256FromHex(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestU256_SubAndCmp(t *testing.T) {
	a := uint256{0, 1, 0, 0} // 2^64
	b := uint256{1, 0, 0, 0}
	d := a.sub(b)
	want := uint256{0xFFFFFFFFFFFFFFFF, 0, 0, 0}
	if d != want {
		t.Fatalf("2^64 - 1 = %v, want %v", d, want)
	}
	if a.cmp(b) != 1 || b.cmp(a) != -1 || a.cmp(a) != 0 {
		t.Error("cmp ordering wrong")
	}
}

func TestU256_ScalarRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		u := randBits(rng, 250)
		s := u.toScalar()
		if scalarToU256(&s) != u {
			t.Fatalf("scalar round trip failed for %s", u.hex())
		}
		f := u.toField()
		if fieldToU256(f.Normalize()) != u {
			t.Fatalf("field round trip failed for %s", u.hex())
		}
	}
}

func TestRandBits_StaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	limit := uint256{1 << 20, 0, 0, 0}
	for i := 0; i < 1000; i++ {
		u := randBits(rng, 20)
		if u.cmp(limit) >= 0 {
			t.Fatalf("randBits(20) produced %s, out of range", u.hex())
		}
	}
	if randBits(rng, 0) != (uint256{}) {
		t.Error("randBits(0) must be zero")
	}
}
