package kangaroo

import (
	"math"
	"math/big"
	"math/rand"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// NbJump is the number of precomputed jumps in the walk's step table.
const NbJump = 32

// jumpSeed is constant so that work files stay portable across runs: the
// same range always rebuilds the same jump table.
const jumpSeed = 0x600DCAFE

// JumpTable holds the precomputed (distance, distance·G) pairs that define
// the walk's step distribution.
type JumpTable struct {
	distance [NbJump]secp256k1.ModNScalar
	px       [NbJump]secp256k1.FieldVal
	py       [NbJump]secp256k1.FieldVal

	// distAvg is the empirical mean of the accepted distance set, kept for
	// diagnostics and the self test.
	distAvg float64
	// u, v are the per-half residue multipliers of the symmetry variant,
	// nil otherwise.
	u, v *big.Int
}

// jumpTargetBits returns the target bit size m of jump distances for a
// range of rangeBits bits.
func jumpTargetBits(rangeBits int, symmetry bool) int {
	m := rangeBits / 2
	if !symmetry {
		m++
	}
	if m > 128 {
		m = 128
	}
	if m < 1 {
		m = 1
	}
	return m
}

// NewJumpTable builds the deterministic jump table for a range of
// rangeBits bits. Distances are redrawn (up to 100 times) until their mean
// falls inside (2^(m-1.05), 2^(m-0.95)); each accepted distance d yields
// the jump point d·G.
func NewJumpTable(rangeBits int, symmetry bool) *JumpTable {
	jt := &JumpTable{}
	jumpBit := jumpTargetBits(rangeBits, symmetry)
	minAvg := math.Pow(2.0, float64(jumpBit)-1.05)
	maxAvg := math.Pow(2.0, float64(jumpBit)-0.95)

	rng := rand.New(rand.NewSource(jumpSeed))

	if symmetry {
		// Two residue classes break length-2 cycles: the first half of the
		// table steps by multiples of u, the second by multiples of v.
		u := new(big.Int).Lsh(big.NewInt(1), uint(jumpBit/2))
		u.Add(u, big.NewInt(1))
		for !u.ProbablyPrime(20) {
			u.Add(u, big.NewInt(2))
		}
		v := new(big.Int).Add(u, big.NewInt(2))
		for !v.ProbablyPrime(20) {
			v.Add(v, big.NewInt(2))
		}
		jt.u = u
		jt.v = v
	}

	dist := make([]*big.Int, NbJump)
	one := big.NewInt(1)
	for retry := 0; retry < 100; retry++ {
		total := new(big.Int)
		for i := 0; i < NbJump; i++ {
			var d *big.Int
			if symmetry {
				d = randBits(rng, jumpBit/2).toBig()
				if i < NbJump/2 {
					d.Mul(d, jt.u)
				} else {
					d.Mul(d, jt.v)
				}
			} else {
				d = randBits(rng, jumpBit).toBig()
			}
			if d.Sign() == 0 {
				d.Set(one)
			}
			dist[i] = d
			total.Add(total, d)
		}
		avg, _ := new(big.Float).Quo(new(big.Float).SetInt(total), big.NewFloat(NbJump)).Float64()
		jt.distAvg = avg
		if avg > minAvg && avg < maxAvg {
			break
		}
	}

	for i := 0; i < NbJump; i++ {
		u, _ := u256FromBig(dist[i])
		jt.distance[i] = u.toScalar()
		var p secp256k1.JacobianPoint
		secp256k1.ScalarBaseMultNonConst(&jt.distance[i], &p)
		p.ToAffine()
		jt.px[i].Set(&p.X).Normalize()
		jt.py[i].Set(&p.Y).Normalize()
	}

	return jt
}

// selectJump maps a kangaroo's x-coordinate to a jump index. With symmetry
// the table is split in two residue halves selected by the symmetry class.
func (jt *JumpTable) selectJump(x uint256, symmetry bool, symClass uint8) int {
	if symmetry {
		return int(x[0]%(NbJump/2)) + (NbJump/2)*int(symClass)
	}
	return int(x[0] % NbJump)
}

// AvgDistance reports the empirical mean jump distance.
func (jt *JumpTable) AvgDistance() float64 { return jt.distAvg }
