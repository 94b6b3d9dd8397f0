package kangaroo

import (
	"fmt"
	"math/bits"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// HashSize is the fixed bucket count of the distinguished point table.
// The bucket index is taken from x's third limb, so it encodes 18 bits of
// the coordinate that the stored fingerprint does not repeat.
const HashSize = 1 << 18

// Add results.
const (
	// AddOK: the point was inserted.
	AddOK = iota
	// AddCollisionSame: an entry with the same x fingerprint and the same
	// herd type already exists. The caller resets the colliding kangaroo.
	AddCollisionSame
	// AddCollisionCross: an entry with the same x fingerprint and the
	// opposite herd type exists; the stored distance and type are returned
	// for key reconstruction.
	AddCollisionCross
)

// hashEntry is one stored distinguished point: the low 128 bits of the
// x-coordinate and the signed distance truncated to 127 bits with the herd
// type packed into the most significant bit. 32 bytes per entry.
type hashEntry struct {
	x [2]uint64
	d [2]uint64
}

type hashBucket struct {
	items []hashEntry
}

// HashTable is the fixed-size bucketed map from DP fingerprint to
// (distance, herd type). It is not internally synchronised: every call,
// including reads from the gap scanner and the checkpoint snapshot, happens
// under the owner's table lock.
type HashTable struct {
	buckets [HashSize]hashBucket
	nbItem  uint64
}

// NewHashTable returns an empty table.
func NewHashTable() *HashTable { return &HashTable{} }

// packDist encodes a mod-n distance in the signed convention: values above
// n/2 are stored as 127-bit two's-complement negatives. kType occupies the
// MSB of the 128-bit word.
func packDist(d *secp256k1.ModNScalar, kType uint32) [2]uint64 {
	mag := *d
	neg := d.IsOverHalfOrder()
	if neg {
		mag.Negate()
	}
	mu := scalarToU256(&mag)
	p := [2]uint64{mu[0], mu[1]}
	if neg {
		var c uint64
		p[0], c = bits.Add64(^p[0], 1, 0)
		p[1], _ = bits.Add64(^p[1], 0, c)
	}
	p[1] &^= uint64(1) << 63
	p[1] |= uint64(kType&1) << 63
	return p
}

// unpackDist reverses packDist.
func unpackDist(p [2]uint64) (secp256k1.ModNScalar, uint32) {
	kType := uint32(p[1] >> 63)
	t0, t1 := p[0], p[1]&^(uint64(1)<<63)
	var d secp256k1.ModNScalar
	if t1&(uint64(1)<<62) != 0 {
		// Negative: sign-extend to 128 bits, negate, then map back mod n.
		t1 |= uint64(1) << 63
		var c uint64
		t0, c = bits.Add64(^t0, 1, 0)
		t1, _ = bits.Add64(^t1, 0, c)
		d = (uint256{t0, t1}).toScalar()
		d.Negate()
	} else {
		d = (uint256{t0, t1}).toScalar()
	}
	return d, kType
}

// bucketIndex is the table's hash function.
func bucketIndex(x uint256) uint64 { return x[2] & (HashSize - 1) }

// Add inserts a distinguished point. On AddCollisionCross the stored
// distance and herd type are returned for the resolver.
func (t *HashTable) Add(x uint256, d *secp256k1.ModNScalar, kType uint32) (int, secp256k1.ModNScalar, uint32) {
	e := hashEntry{
		x: [2]uint64{x[0], x[1]},
		d: packDist(d, kType),
	}
	return t.addEntry(bucketIndex(x), e)
}

// addEntry inserts an already packed entry into bucket h. Used by Add and
// by the work-file load/merge paths, which only have the truncated form.
func (t *HashTable) addEntry(h uint64, e hashEntry) (int, secp256k1.ModNScalar, uint32) {
	b := &t.buckets[h]
	_, kType := unpackDist(e.d)
	for i := range b.items {
		if b.items[i].x == e.x {
			sd, st := unpackDist(b.items[i].d)
			if st == kType {
				return AddCollisionSame, sd, st
			}
			return AddCollisionCross, sd, st
		}
	}
	b.items = append(b.items, e)
	t.nbItem++
	return AddOK, secp256k1.ModNScalar{}, 0
}

// NbItem reports the stored entry count.
func (t *HashTable) NbItem() uint64 { return t.nbItem }

// Reset drops every bucket list, releasing entry storage.
func (t *HashTable) Reset() {
	for h := range t.buckets {
		t.buckets[h].items = nil
	}
	t.nbItem = 0
}

// sizeInfo renders the approximate memory footprint, status-line style.
func (t *HashTable) sizeInfo() string {
	bytes := uint64(HashSize) * 24
	for h := range t.buckets {
		bytes += uint64(cap(t.buckets[h].items)) * 32
	}
	if bytes < 1024*1024 {
		return fmt.Sprintf("%.1fKB", float64(bytes)/1024.0)
	}
	return fmt.Sprintf("%.1fMB", float64(bytes)/(1024.0*1024.0))
}

// forEach visits buckets in index order. Used by checkpoints, the text
// writer and the gap scanner.
func (t *HashTable) forEach(fn func(h uint64, items []hashEntry)) {
	for h := range t.buckets {
		if len(t.buckets[h].items) > 0 {
			fn(uint64(h), t.buckets[h].items)
		}
	}
}

// bucket returns the entries of one bucket (shared storage, caller must
// hold the table lock and not mutate).
func (t *HashTable) bucket(h uint64) []hashEntry { return t.buckets[h].items }
