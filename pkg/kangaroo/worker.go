package kangaroo

import "github.com/decred/dcrd/dcrec/secp256k1/v4"

// DpHit is one distinguished point produced by a walker: the full
// x-coordinate, the travelled distance, the kangaroo's herd slot and type.
type DpHit struct {
	X     uint256
	D     secp256k1.ModNScalar
	KIdx  int
	KType uint32
}

// KangarooState is the portable (x, y, d) triple of one kangaroo, used by
// checkpoints and kangaroo-only work files.
type KangarooState struct {
	X, Y, D uint256
}

// Worker advances a batch of kangaroos. CPU workers walk in-process; a GPU
// worker would wrap a device dispatch loop behind the same surface, and the
// coordinator holds a slice of these without caring which is which.
//
// Step runs one batch step (one jump per kangaroo; a device worker may run
// many iterations per dispatch) and returns the distinguished points found.
// SnapshotState is only called while the worker is parked at the checkpoint
// barrier; RestoreState is called before the worker starts walking.
type Worker interface {
	ID() int
	NbKangaroo() uint64
	Step() []DpHit
	ResetKangaroo(idx int, kType uint32)
	SnapshotState() []KangarooState
	RestoreState(states []KangarooState)
}
