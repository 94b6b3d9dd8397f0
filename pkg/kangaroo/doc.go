// Package kangaroo solves the interval discrete logarithm problem on
// secp256k1 with the Pollard lambda ("kangaroo") method and distinguished
// point collision detection.
//
// Given a public key P and a half-open interval [A, B) known to contain its
// private scalar, the solver runs herds of tame and wild kangaroos in
// parallel, records distinguished points in a shared hash table and
// reconstructs the private key from the first tame/wild collision.
//
// # Quick Start
//
//	import "github.com/mahdiidarabi/kangaroo/pkg/kangaroo"
//
//	solver := kangaroo.New().
//	    WithRangeHex("100000000", "100100000").
//	    WithPublicKeyHex("03a34b...").
//	    WithThreads(4)
//
//	results, err := solver.Solve(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Priv: 0x%s\n", results[0].PrivateKey.Text(16))
//
// # Work Files
//
// Long searches can checkpoint the hash table (and optionally every
// kangaroo state) to a work file and resume later:
//
//	solver := kangaroo.New().
//	    WithRangeHex(start, stop).
//	    WithPublicKeyHex(pub).
//	    WithWorkFile("save.work", 60*time.Second).
//	    WithSaveKangaroo(true)
//
// Work files written by different machines over the same key and range can
// be merged with MergeWorkFiles, and inspected with WorkFileInfo.
//
// # Distributed Mode
//
// A server started with RunServer owns the single authoritative hash table;
// clients created with WithServer fetch the search configuration from it
// and stream their distinguished points back instead of keeping a local
// table. See internal/netdp for the transport.
package kangaroo
