package kangaroo

import (
	"fmt"
	"os"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// collisionCheck resolves a cross-herd collision between a freshly walked
// distance and a stored one. Both distances may carry an independent sign
// flip from symmetry normalisation, so four candidates are tried. On
// success endOfSearch is raised. A collision that fails every candidate is
// reported and the walk simply resumes.
//
// Caller holds the table lock.
func (s *Solver) collisionCheck(d1 *secp256k1.ModNScalar, t1 uint32, d2 *secp256k1.ModNScalar, t2 uint32) bool {
	var td, wd secp256k1.ModNScalar
	if t1 == TAME {
		td.Set(d1)
		wd.Set(d2)
	} else {
		td.Set(d2)
		wd.Set(d1)
	}

	solved := s.checkKey(td, wd, 0) || s.checkKey(td, wd, 1) ||
		s.checkKey(td, wd, 2) || s.checkKey(td, wd, 3)
	if solved {
		s.endOfSearch.Store(true)
		return true
	}

	fmt.Printf("\nUnexpected wrong collision, reset kangaroo !\n")
	fmt.Printf("Found: Td %s\n", signedHex(&td))
	fmt.Printf("Found: Wd %s\n", signedHex(&wd))
	return false
}

// signedHex renders a mod-n scalar in the signed convention used by the
// collision diagnostics.
func signedHex(d *secp256k1.ModNScalar) string {
	v := *d
	if v.IsOverHalfOrder() {
		v.Negate()
		return "-" + scalarToU256(&v).hex()
	}
	return scalarToU256(&v).hex()
}

// checkKey tests one sign candidate: flags bit 0 negates the tame
// distance, bit 1 the wild one. The candidate scalar pk = ±dT ± dW is
// compared against both the normalised key and its negation (symmetry
// collapses ±K), then shifted back to the absolute range.
func (s *Solver) checkKey(td, wd secp256k1.ModNScalar, flags int) bool {
	if flags&1 != 0 {
		td.Negate()
	}
	if flags&2 != 0 {
		wd.Negate()
	}

	pk := td
	pk.Add(&wd)

	p := scalarBaseAffine(&pk)

	if pointEqual(&p, &s.keyToSearch) {
		s.undoShift(&pk)
		return s.output(&pk, 'N', flags)
	}

	if pointEqual(&p, &s.keyToSearchNeg) {
		pk.Negate()
		s.undoShift(&pk)
		return s.output(&pk, 'S', flags)
	}

	return false
}

// undoShift maps a scalar relative to the normalised key back to the
// absolute private key.
func (s *Solver) undoShift(pk *secp256k1.ModNScalar) {
	if s.symmetry {
		half := s.rangeWidthDiv2.toScalar()
		pk.Add(&half)
	}
	start := s.rangeStart.toScalar()
	pk.Add(&start)
}

// output prints and records a candidate solution, returning whether the
// recomputed public key matches the configured target.
func (s *Solver) output(pk *secp256k1.ModNScalar, sInfo byte, sType int) bool {
	f := os.Stdout
	needClose := false
	if s.outputFile != "" {
		of, err := os.OpenFile(s.outputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Printf("Cannot open %s for writing\n", s.outputFile)
		} else {
			f = of
			needClose = true
		}
	}
	if !needClose {
		fmt.Printf("\n")
	}
	defer func() {
		if needClose {
			f.Close()
		}
	}()

	pubHex := s.targetKeyHex()
	fmt.Fprintf(f, "Key#%2d [%d%c]Pub:  0x%s \n", s.keyIdx, sType, sInfo, pubHex)

	p := scalarBaseAffine(pk)
	if !pointEqual(&p, &s.targetKey) {
		fmt.Fprintf(f, "       Failed !\n")
		return false
	}

	fmt.Fprintf(f, "       Priv: 0x%s \n", scalarToU256(pk).hex64())

	s.solution = &Result{
		KeyIndex:     s.keyIdx,
		PrivateKey:   scalarToU256(pk).toBig(),
		PublicKeyHex: pubHex,
	}
	return true
}
