package kangaroo

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Walk a while, checkpoint, resume in a fresh solver and finish the
// search. The resumed run must still find the key and carry the saved
// operation count forward.
func TestCheckpoint_SaveAndResume(t *testing.T) {
	dir := t.TempDir()
	workFile := filepath.Join(dir, "save.work")

	priv := uint256{1<<36 + 0xABCDE01}
	start := uint256{1 << 36}
	end := uint256{2 << 36}

	a := newTestSolver(t, start, end, priv).
		WithWorkFile(workFile, time.Hour).
		WithSaveKangaroo(true).
		WithDPBits(8)
	mustInit(t, a)

	herd := newHerd(CPUGrpSize)
	a.createHerd(herd, TAME)
	w := newCPUWorker(0, a, herd)

	steps := 0
	for a.table.NbItem() < 64 && !a.endOfSearch.Load() {
		a.commitHits(w, w.Step())
		steps++
		if steps > 10000 {
			t.Fatal("walk produced too few distinguished points")
		}
	}
	if a.endOfSearch.Load() {
		t.Skip("search solved before the checkpoint could be taken")
	}

	count := uint64(steps) * CPUGrpSize
	a.saveWork(count, 1.5, []Worker{w})
	a.waitForAsyncSave()

	if _, err := os.Stat(workFile); err != nil {
		t.Fatalf("checkpoint was not written: %v", err)
	}

	// Resume: the work file overrides range, key and DP size.
	b := New().
		WithRangeHex(start.hex(), end.hex()).
		WithPublicKeyHex(testPubHex(t, priv)).
		WithSeed(testSeed + 1).
		WithInputFile(workFile)
	b.tick = 20 * time.Millisecond

	results := solveWithTimeout(t, b, 300*time.Second)
	if len(results) != 1 {
		t.Fatalf("resumed search got %d results, want 1", len(results))
	}
	want := new(big.Int).SetUint64(1<<36 + 0xABCDE01)
	if results[0].PrivateKey.Cmp(want) != 0 {
		t.Fatalf("resumed search recovered 0x%x, want 0x%x", results[0].PrivateKey, want)
	}
	if results[0].Count < count {
		t.Errorf("resumed count %d lost the saved offset %d", results[0].Count, count)
	}
}

// The saved kangaroos and table survive a load: entry and walker counts
// match what was written.
func TestCheckpoint_LoadRestoresState(t *testing.T) {
	dir := t.TempDir()
	workFile := filepath.Join(dir, "save.work")

	priv := uint256{1<<36 + 0xABCDE01}
	start := uint256{1 << 36}
	end := uint256{2 << 36}

	a := newTestSolver(t, start, end, priv).
		WithWorkFile(workFile, time.Hour).
		WithSaveKangaroo(true).
		WithDPBits(8)
	mustInit(t, a)

	herd := newHerd(CPUGrpSize)
	a.createHerd(herd, TAME)
	w := newCPUWorker(0, a, herd)
	for i := 0; i < 40 && !a.endOfSearch.Load(); i++ {
		a.commitHits(w, w.Step())
	}
	if a.endOfSearch.Load() {
		t.Skip("search solved before the checkpoint could be taken")
	}
	a.saveWork(40*CPUGrpSize, 2.0, []Worker{w})
	a.waitForAsyncSave()

	b := New().
		WithRangeHex(start.hex(), end.hex()).
		WithPublicKeyHex(testPubHex(t, priv)).
		WithSeed(testSeed).
		WithInputFile(workFile)
	b.tick = 20 * time.Millisecond
	mustInit(t, b)

	if b.table.NbItem() != a.table.NbItem() {
		t.Fatalf("loaded %d entries, saved %d", b.table.NbItem(), a.table.NbItem())
	}
	if b.nbLoadedWalk != CPUGrpSize {
		t.Fatalf("loaded %d kangaroos, saved %d", b.nbLoadedWalk, CPUGrpSize)
	}
	if b.offsetCount != 40*CPUGrpSize {
		t.Fatalf("loaded count offset %d, want %d", b.offsetCount, 40*CPUGrpSize)
	}
	if b.dpBits != 8 {
		t.Fatalf("loaded dp %d, want 8", b.dpBits)
	}

	// Restored kangaroos resume exactly where they stopped.
	restored := newHerd(CPUGrpSize)
	b.createHerd(restored, TAME)
	rw := newCPUWorker(0, b, restored)
	b.restoreInto(rw)
	for g := 0; g < 8; g++ {
		if restored.xu[g] != herd.xu[g] {
			t.Fatalf("kangaroo %d position not restored", g)
		}
		if !restored.d[g].Equals(&herd.d[g]) {
			t.Fatalf("kangaroo %d distance not restored", g)
		}
	}
}
