// Package gpu defines the device offload contract of the solver. A backend
// uploads the jump table and a large kangaroo herd once, then repeatedly
// runs batches of walk iterations on the device and returns the
// distinguished points produced through a fixed-capacity ring.
//
// This build registers no device backend; requesting one reports it
// unavailable, and the solver falls back to CPU workers.
package gpu

import (
	"errors"
	"fmt"
)

// NbRun is the number of walk iterations each kangaroo performs per
// dispatch.
const NbRun = 64

// MinMaxFound is the smallest acceptable DP ring capacity. The ring must
// catch every distinguished point produced during one dispatch; overflow
// is a configuration error (the DP mask is too permissive for the herd
// size), not a recoverable condition.
const MinMaxFound = 2 * 65536

// ErrNotBuilt is returned when the requested backend is not part of this
// build.
var ErrNotBuilt = errors.New("gpu backend not built")

// Config sizes one device dispatch.
type Config struct {
	ThreadsPerGroup       uint32
	Groups                uint32
	IterationsPerDispatch uint32
	JumpCount             uint32
	DPMask                uint64
	MaxFound              uint32
}

// DPRecord is one distinguished point read back from the device ring.
type DPRecord struct {
	X     [4]uint64 // x-coordinate limbs, little endian
	D     [2]uint64 // travelled distance, low 128 bits
	KIdx  uint64    // kangaroo index within the device herd
}

// Backend is the device contract. Kangaroo herds cross the boundary as
// packed little-endian (x, y, d) records; the host side owns the staging
// buffer and the device side its copy, swapped wholesale on upload and
// download.
type Backend interface {
	Init() error
	Allocate(cfg Config) error
	UploadJumps(dist []uint64, px, py []uint64) error
	UploadKangaroos(packed []byte) error
	RunOnce() error
	ReadDP() ([]DPRecord, error)
	DownloadKangaroos(packed []byte) error
	Shutdown()
}

// Create instantiates a backend by name ("metal", "cuda"). This build has
// no backend, so it always returns an error wrapping ErrNotBuilt.
func Create(name string) (Backend, error) {
	return nil, fmt.Errorf("%w: %q", ErrNotBuilt, name)
}

// Available lists the backends compiled into this binary.
func Available() []string { return nil }
