package kangaroo

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// batchInvert replaces every element of vals with its modular inverse using
// a single field inversion plus a linear number of multiplications
// (Montgomery's trick). scratch must be at least len(vals) long; it holds
// the running prefix products between the passes. Elements must be
// normalized and non-zero.
func batchInvert(vals, scratch []secp256k1.FieldVal) {
	n := len(vals)
	if n == 0 {
		return
	}
	scratch[0].Set(&vals[0])
	for i := 1; i < n; i++ {
		scratch[i].Mul2(&scratch[i-1], &vals[i]).Normalize()
	}

	var inv secp256k1.FieldVal
	inv.Set(&scratch[n-1]).Inverse().Normalize()

	for i := n - 1; i > 0; i-- {
		var t secp256k1.FieldVal
		t.Mul2(&inv, &scratch[i-1]).Normalize()
		inv.Mul(&vals[i]).Normalize()
		vals[i].Set(&t)
	}
	vals[0].Set(&inv)
}

// pointEqual compares two points that have been brought to affine form.
// The point at infinity is represented as (0, 0) after ToAffine.
func pointEqual(a, b *secp256k1.JacobianPoint) bool {
	var ax, ay, bx, by secp256k1.FieldVal
	ax.Set(&a.X).Normalize()
	ay.Set(&a.Y).Normalize()
	bx.Set(&b.X).Normalize()
	by.Set(&b.Y).Normalize()
	return ax.Equals(&bx) && ay.Equals(&by)
}

// scalarBaseAffine computes k·G in affine form.
func scalarBaseAffine(k *secp256k1.ModNScalar) secp256k1.JacobianPoint {
	var p secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(k, &p)
	p.ToAffine()
	p.X.Normalize()
	p.Y.Normalize()
	return p
}

// addAffine computes a+b in affine form. Either argument may be the point
// at infinity.
func addAffine(a, b *secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	var r secp256k1.JacobianPoint
	secp256k1.AddNonConst(a, b, &r)
	r.ToAffine()
	r.X.Normalize()
	r.Y.Normalize()
	return r
}

// negateY returns the field negation of a normalized y coordinate.
func negateY(y *secp256k1.FieldVal) secp256k1.FieldVal {
	var n secp256k1.FieldVal
	n.NegateVal(y, 1).Normalize()
	return n
}
