package kangaroo

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"math/bits"
	"math/rand"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// uint256 is a 256-bit unsigned integer as four little-endian 64-bit limbs.
// The walk keeps curve coordinates in secp256k1.FieldVal form for
// arithmetic; this view exposes the limbs that drive jump selection
// (limb 0), bucket hashing (limb 2) and the DP predicate (limb 3), and is
// the unit of work-file I/O.
type uint256 [4]uint64

func u256FromBytesBE(b [32]byte) uint256 {
	var u uint256
	for i := 0; i < 4; i++ {
		off := 24 - 8*i
		u[i] = uint64(b[off])<<56 | uint64(b[off+1])<<48 | uint64(b[off+2])<<40 |
			uint64(b[off+3])<<32 | uint64(b[off+4])<<24 | uint64(b[off+5])<<16 |
			uint64(b[off+6])<<8 | uint64(b[off+7])
	}
	return u
}

func (u uint256) bytesBE() [32]byte {
	var b [32]byte
	for i := 0; i < 4; i++ {
		off := 24 - 8*i
		v := u[i]
		b[off] = byte(v >> 56)
		b[off+1] = byte(v >> 48)
		b[off+2] = byte(v >> 40)
		b[off+3] = byte(v >> 32)
		b[off+4] = byte(v >> 24)
		b[off+5] = byte(v >> 16)
		b[off+6] = byte(v >> 8)
		b[off+7] = byte(v)
	}
	return b
}

// fieldToU256 extracts the limbs of a normalized field element.
func fieldToU256(f *secp256k1.FieldVal) uint256 {
	var b [32]byte
	f.PutBytes(&b)
	return u256FromBytesBE(b)
}

func scalarToU256(s *secp256k1.ModNScalar) uint256 {
	var b [32]byte
	s.PutBytes(&b)
	return u256FromBytesBE(b)
}

func (u uint256) toScalar() secp256k1.ModNScalar {
	var s secp256k1.ModNScalar
	b := u.bytesBE()
	s.SetBytes(&b)
	return s
}

func (u uint256) toField() secp256k1.FieldVal {
	var f secp256k1.FieldVal
	b := u.bytesBE()
	f.SetBytes(&b)
	return f
}

func (u uint256) isZero() bool {
	return u[0]|u[1]|u[2]|u[3] == 0
}

// cmp returns -1, 0 or 1.
func (u uint256) cmp(v uint256) int {
	for i := 3; i >= 0; i-- {
		if u[i] < v[i] {
			return -1
		}
		if u[i] > v[i] {
			return 1
		}
	}
	return 0
}

// sub returns u - v, wrapping mod 2^256.
func (u uint256) sub(v uint256) uint256 {
	var r uint256
	var borrow uint64
	for i := 0; i < 4; i++ {
		r[i], borrow = bits.Sub64(u[i], v[i], borrow)
	}
	return r
}

func (u uint256) toBig() *big.Int {
	b := u.bytesBE()
	return new(big.Int).SetBytes(b[:])
}

func u256FromBig(v *big.Int) (uint256, error) {
	if v.Sign() < 0 || v.BitLen() > 256 {
		return uint256{}, fmt.Errorf("%w: value out of 256-bit range", ErrInput)
	}
	var b [32]byte
	v.FillBytes(b[:])
	return u256FromBytesBE(b), nil
}

// hex renders the value the way the work text format expects: uppercase,
// no leading zeros, "0" for zero.
func (u uint256) hex() string {
	b := u.bytesBE()
	s := strings.ToUpper(hex.EncodeToString(b[:]))
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}

// hex64 renders all 64 hex digits, for solution output.
func (u uint256) hex64() string {
	b := u.bytesBE()
	return strings.ToUpper(hex.EncodeToString(b[:]))
}

func u256FromHex(s string) (uint256, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" || len(s) > 64 {
		return uint256{}, fmt.Errorf("%w: invalid 256-bit hex %q", ErrInput, s)
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return uint256{}, fmt.Errorf("%w: invalid 256-bit hex %q", ErrInput, s)
	}
	return u256FromBig(v)
}

// randBits draws a uniform value in [0, 2^bits).
func randBits(rng *rand.Rand, bits int) uint256 {
	if bits <= 0 {
		return uint256{}
	}
	if bits > 256 {
		bits = 256
	}
	var u uint256
	full := bits / 64
	for i := 0; i < full; i++ {
		u[i] = rng.Uint64()
	}
	if rem := bits % 64; rem != 0 {
		u[full] = rng.Uint64() >> (64 - rem)
	}
	return u
}
