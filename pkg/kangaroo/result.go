package kangaroo

import (
	"math/big"
	"time"
)

// Result is one solved key.
type Result struct {
	// KeyIndex is the key's position in the configuration file.
	KeyIndex int

	// PrivateKey is the recovered absolute private scalar (range offset
	// already applied) and verifies against the configured public key.
	PrivateKey *big.Int

	// PublicKeyHex is the compressed target public key.
	PublicKeyHex string

	// Count is the number of group operations spent on this key, Time the
	// wall time, DeadKangaroos the number of same-herd collisions.
	Count         uint64
	Time          time.Duration
	DeadKangaroos uint64
}
