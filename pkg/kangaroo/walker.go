package kangaroo

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// CPUGrpSize is the kangaroo batch owned by one CPU worker. The whole
// batch shares a single field inversion per step.
const CPUGrpSize = 1024

// cpuWorker walks one herd of CPUGrpSize kangaroos.
type cpuWorker struct {
	id     int
	solver *Solver
	herd   *Herd

	// per-step scratch, reused across iterations
	dx      []secp256k1.FieldVal
	scratch []secp256k1.FieldVal
	jmp     []int
	slow    []bool
	hits    []DpHit

	// lastJump backs the 2-cycle guard of the symmetry variant.
	lastJump []int
}

func newCPUWorker(id int, s *Solver, herd *Herd) *cpuWorker {
	n := herd.len()
	w := &cpuWorker{
		id:       id,
		solver:   s,
		herd:     herd,
		dx:       make([]secp256k1.FieldVal, n),
		scratch:  make([]secp256k1.FieldVal, n),
		jmp:      make([]int, n),
		slow:     make([]bool, n),
		lastJump: make([]int, n),
	}
	for i := range w.lastJump {
		w.lastJump[i] = -1
	}
	return w
}

func (w *cpuWorker) ID() int            { return w.id }
func (w *cpuWorker) NbKangaroo() uint64 { return uint64(w.herd.len()) }

// Step advances every kangaroo by one jump. Three passes: jump selection
// and dx accumulation, a shared batch inversion, then the affine point
// update with DP detection.
func (w *cpuWorker) Step() []DpHit {
	s := w.solver
	h := w.herd
	jt := s.jt
	n := h.len()

	// Pass 1: pick jumps, collect dx = x - Jx for the batch inversion.
	for g := 0; g < n; g++ {
		jmp := jt.selectJump(h.xu[g], s.symmetry, h.sym[g])
		if s.symmetry && jmp == w.lastJump[g] {
			// Avoid the length-2 cycle the symmetry fold introduces.
			half := NbJump / 2
			base := half * int(h.sym[g])
			jmp = base + (jmp-base+1)%half
		}
		w.jmp[g] = jmp
		var negJx secp256k1.FieldVal
		negJx.NegateVal(&jt.px[jmp], 1)
		w.dx[g].Add2(&h.px[g], &negJx).Normalize()
		// A kangaroo sitting on its own jump point would poison the whole
		// batch inversion with a zero; route it through the generic add.
		w.slow[g] = w.dx[g].IsZero()
		if w.slow[g] {
			w.dx[g].SetInt(1)
		}
	}

	batchInvert(w.dx, w.scratch)

	// Pass 2: affine addition P' = P + J reusing the shared inverses.
	w.hits = w.hits[:0]
	for g := 0; g < n; g++ {
		jmp := w.jmp[g]
		w.lastJump[g] = jmp

		var rx, ry secp256k1.FieldVal
		if w.slow[g] {
			// P == ±J: double, or fall into the identity.
			var jp, pos secp256k1.JacobianPoint
			jp.X.Set(&jt.px[jmp])
			jp.Y.Set(&jt.py[jmp])
			jp.Z.SetInt(1)
			pos.X.Set(&h.px[g])
			pos.Y.Set(&h.py[g])
			pos.Z.SetInt(1)
			r := addAffine(&pos, &jp)
			if r.X.IsZero() && r.Y.IsZero() {
				// Walked into the identity; this walker cannot continue.
				w.solver.seedKangaroo(h, g, uint32(g)&1)
				w.lastJump[g] = -1
				continue
			}
			rx.Set(&r.X)
			ry.Set(&r.Y)
		} else {
			var dy, sl, t secp256k1.FieldVal
			dy.NegateVal(&jt.py[jmp], 1)
			dy.Add(&h.py[g]).Normalize()       // dy = y - Jy
			sl.Mul2(&dy, &w.dx[g]).Normalize() // s = dy / dx

			rx.SquareVal(&sl) // rx = s^2 - Jx - x
			t.NegateVal(&jt.px[jmp], 1)
			rx.Add(&t)
			t.NegateVal(&h.px[g], 1)
			rx.Add(&t).Normalize()

			t.NegateVal(&rx, 1)
			t.Add(&h.px[g]).Normalize() // t = x - rx
			ry.Mul2(&sl, &t)
			t.NegateVal(&h.py[g], 1)
			ry.Add(&t).Normalize() // ry = s*(x-rx) - y
		}

		h.d[g].Add(&jt.distance[jmp])

		if s.symmetry {
			ny := negateY(&ry)
			if fieldToU256(&ny).cmp(fieldToU256(&ry)) < 0 {
				ry.Set(&ny)
				h.d[g].Negate()
				h.sym[g] ^= 1
			}
		}

		h.px[g].Set(&rx)
		h.py[g].Set(&ry)
		h.xu[g] = fieldToU256(&rx)

		// Pass 3 folded in: DP test on the new x.
		if s.isDP(h.xu[g][3]) {
			w.hits = append(w.hits, DpHit{
				X:     h.xu[g],
				D:     h.d[g],
				KIdx:  g,
				KType: uint32(g) & 1,
			})
		}
	}

	return w.hits
}

// ResetKangaroo replaces one kangaroo with a fresh draw of the same type,
// after a collision inside its own herd.
func (w *cpuWorker) ResetKangaroo(idx int, kType uint32) {
	w.solver.seedKangaroo(w.herd, idx, kType)
	w.lastJump[idx] = -1
}

func (w *cpuWorker) SnapshotState() []KangarooState {
	states := make([]KangarooState, w.herd.len())
	for g := range states {
		states[g] = KangarooState{
			X: fieldToU256(&w.herd.px[g]),
			Y: fieldToU256(&w.herd.py[g]),
			D: scalarToU256(&w.herd.d[g]),
		}
	}
	return states
}

func (w *cpuWorker) RestoreState(states []KangarooState) {
	n := len(states)
	if n > w.herd.len() {
		n = w.herd.len()
	}
	for g := 0; g < n; g++ {
		w.herd.px[g] = states[g].X.toField()
		w.herd.py[g] = states[g].Y.toField()
		w.herd.xu[g] = states[g].X
		w.herd.d[g] = states[g].D.toScalar()
		// The symmetry class only selects a jump half; restarting every
		// restored kangaroo in class 0 resumes a valid walk.
		w.herd.sym[g] = 0
		w.lastJump[g] = -1
	}
}
