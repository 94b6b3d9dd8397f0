package kangaroo

import (
	"math/rand"
	"testing"
)

func TestPackDist_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 2000; i++ {
		u := randBits(rng, 125)
		d := u.toScalar()
		if i%2 == 1 {
			d.Negate() // signed convention: value in [-n/2, n/2)
		}
		kType := uint32(i) % 2
		packed := packDist(&d, kType)
		got, gotType := unpackDist(packed)
		if gotType != kType {
			t.Fatalf("type bit lost at %d", i)
		}
		if !got.Equals(&d) {
			t.Fatalf("distance corrupted at %d", i)
		}
	}
}

func TestPackDist_TypeBitIsMSB(t *testing.T) {
	d := (uint256{0x42}).toScalar()
	tame := packDist(&d, TAME)
	wild := packDist(&d, WILD)
	if tame[1]>>63 != 0 || wild[1]>>63 != 1 {
		t.Fatal("herd type must live in the MSB of the packed distance")
	}
	if tame[0] != wild[0] || tame[1]&^(uint64(1)<<63) != wild[1]&^(uint64(1)<<63) {
		t.Fatal("type bit must be the only difference")
	}
}

func TestHashTable_AddAndCollisions(t *testing.T) {
	table := NewHashTable()
	x := uint256{0x1111, 0x2222, 0x3333, 0}
	d1 := (uint256{0x777}).toScalar()
	d2 := (uint256{0x333}).toScalar()

	if status, _, _ := table.Add(x, &d1, TAME); status != AddOK {
		t.Fatalf("first insert: got %d, want AddOK", status)
	}
	if table.NbItem() != 1 {
		t.Fatalf("NbItem = %d, want 1", table.NbItem())
	}

	// Same herd on the same fingerprint.
	if status, _, _ := table.Add(x, &d2, TAME); status != AddCollisionSame {
		t.Fatal("same-herd collision not detected")
	}

	// Cross herd returns the stored distance and type.
	status, kDist, kType := table.Add(x, &d2, WILD)
	if status != AddCollisionCross {
		t.Fatal("cross collision not detected")
	}
	if kType != TAME || !kDist.Equals(&d1) {
		t.Fatal("cross collision must surface the stored entry")
	}

	// A different x in the same bucket is independent.
	x2 := x
	x2[0]++
	if status, _, _ := table.Add(x2, &d2, WILD); status != AddOK {
		t.Fatal("distinct fingerprints must not collide")
	}
}

func TestHashTable_BucketIndex(t *testing.T) {
	table := NewHashTable()
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		x := randBits(rng, 256)
		d := randBits(rng, 100).toScalar()
		table.Add(x, &d, uint32(i)%2)
		h := x[2] & (HashSize - 1)
		found := false
		for _, e := range table.bucket(h) {
			if e.x == [2]uint64{x[0], x[1]} {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("entry %d not in bucket x.limb2 & (HashSize-1)", i)
		}
	}
}

func TestHashTable_Reset(t *testing.T) {
	table := NewHashTable()
	rng := rand.New(rand.NewSource(13))
	for i := 0; i < 100; i++ {
		x := randBits(rng, 256)
		d := randBits(rng, 64).toScalar()
		table.Add(x, &d, 0)
	}
	table.Reset()
	if table.NbItem() != 0 {
		t.Fatal("reset must drop every entry")
	}
	for h := uint64(0); h < HashSize; h++ {
		if len(table.bucket(h)) != 0 {
			t.Fatal("reset must clear bucket lists")
		}
	}
}
