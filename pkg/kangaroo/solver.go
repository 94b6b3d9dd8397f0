package kangaroo

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// sendPeriod is how often a client-mode worker flushes buffered DPs to the
// aggregation server.
const sendPeriod = 2 * time.Second

// Solver owns the search for the private scalars of one or more public
// keys over a fixed interval. Configure it with the With* builders, then
// call Solve. Keys are solved sequentially; the hash table is reset
// between keys.
type Solver struct {
	// configuration
	rangeStartHex string
	rangeEndHex   string
	pubKeyHex     []string
	nbThread      int
	initDPBits    int
	workFile      string
	workTextFile  string
	inputFile     string
	savePeriod    time.Duration
	saveKangaroo  bool
	splitWorkfile bool
	maxStep       float64
	outputFile    string
	symmetry      bool
	serverAddr    string
	seed          int64
	tick          time.Duration

	// parsed inputs
	rangeStart uint256
	rangeEnd   uint256
	keys       []*secp256k1.PublicKey

	// derived, fixed for the whole run
	rangePower     int
	rangeWidth     uint256
	rangeWidthDiv2 uint256
	rangeWidthDiv4 uint256
	rangeWidthDiv8 uint256
	dpBits         int
	dpMask         uint64
	expectedNbOp   float64
	expectedMem    float64
	totalRW        uint64
	jt             *JumpTable

	// per-key state
	keyIdx         int
	targetKey      secp256k1.JacobianPoint
	keyToSearch    secp256k1.JacobianPoint
	keyToSearchNeg secp256k1.JacobianPoint
	solution       *Result

	// shared mutable state
	table       *HashTable
	ghMu        sync.Mutex // guards table
	saveMu      sync.Mutex // checkpoint barrier
	endOfSearch atomic.Bool
	saveRequest atomic.Bool
	asyncSave   atomic.Bool
	saveWg      sync.WaitGroup

	counters  []atomic.Uint64
	waiting   []atomic.Bool
	started   []atomic.Bool
	deadKang  atomic.Uint64
	tameCount atomic.Uint64
	wildCount atomic.Uint64

	gapMu     sync.Mutex
	gapSeen   bool
	lastGap   uint256
	lowestGap uint256

	rng   *rand.Rand
	rngMu sync.Mutex

	// resume offsets loaded from an input work file
	offsetCount     uint64
	offsetTime      float64
	nbLoadedWalk    uint64
	loadedKangaroos []KangarooState

	// client mode DP buffer
	dpBufMu sync.Mutex
	dpBuf   []DpHit
	sender  dpSender
}

// dpSender streams DP batches to an aggregation server (client mode).
type dpSender interface {
	SendDP(ctx context.Context, workerID int, hits []DpHit) error
}

// New returns a solver with default settings: one CPU thread per batch of
// 1024 kangaroos, automatic DP size, no checkpoints.
func New() *Solver {
	return &Solver{
		nbThread:   1,
		initDPBits: -1,
		savePeriod: 60 * time.Second,
		seed:       time.Now().UnixNano(),
		tick:       2 * time.Second,
	}
}

// WithRangeHex sets the search interval [start, end) from hex strings.
func (s *Solver) WithRangeHex(start, end string) *Solver {
	s.rangeStartHex = start
	s.rangeEndHex = end
	return s
}

// WithPublicKeyHex appends target public keys (compressed or uncompressed
// hex). Keys are solved in order.
func (s *Solver) WithPublicKeyHex(keys ...string) *Solver {
	s.pubKeyHex = append(s.pubKeyHex, keys...)
	return s
}

// WithThreads sets the CPU worker count.
func (s *Solver) WithThreads(n int) *Solver {
	if n > 0 {
		s.nbThread = n
	}
	return s
}

// WithDPBits forces the distinguished point size instead of the automatic
// choice. 0 stores every step; the maximum is 64.
func (s *Solver) WithDPBits(bits int) *Solver {
	s.initDPBits = bits
	return s
}

// WithWorkFile enables periodic checkpoints to path.
func (s *Solver) WithWorkFile(path string, period time.Duration) *Solver {
	s.workFile = path
	if period > 0 {
		s.savePeriod = period
	}
	return s
}

// WithTextWorkFile mirrors every checkpoint to a line-oriented text file
// for inspection and bulk diff.
func (s *Solver) WithTextWorkFile(path string) *Solver {
	s.workTextFile = path
	return s
}

// WithInputFile resumes from a previously saved work file.
func (s *Solver) WithInputFile(path string) *Solver {
	s.inputFile = path
	return s
}

// WithSaveKangaroo includes every kangaroo state in checkpoints, so a
// resumed search loses no walk progress.
func (s *Solver) WithSaveKangaroo(v bool) *Solver {
	s.saveKangaroo = v
	return s
}

// WithSplitWorkfile rotates the work file (suffixing a timestamp) and
// clears the table after each save.
func (s *Solver) WithSplitWorkfile(v bool) *Solver {
	s.splitWorkfile = v
	return s
}

// WithMaxStep aborts a key once steps exceed maxStep times the expected
// operation count. 0 disables.
func (s *Solver) WithMaxStep(m float64) *Solver {
	s.maxStep = m
	return s
}

// WithOutputFile appends solutions to path instead of stdout.
func (s *Solver) WithOutputFile(path string) *Solver {
	s.outputFile = path
	return s
}

// WithSymmetry restricts walks to the (x, ±y) equivalence classes, nearly
// halving expected work at the cost of a 2-cycle guard.
func (s *Solver) WithSymmetry(v bool) *Solver {
	s.symmetry = v
	return s
}

// WithServer runs in client mode against an aggregation server: the search
// configuration is fetched from addr and distinguished points are streamed
// there instead of a local table.
func (s *Solver) WithServer(addr string) *Solver {
	s.serverAddr = addr
	return s
}

// WithSeed fixes the herd PRNG, for reproducible runs.
func (s *Solver) WithSeed(seed int64) *Solver {
	s.seed = seed
	return s
}

func (s *Solver) clientMode() bool { return s.serverAddr != "" }

// setDP installs the distinguished point mask: a point is distinguished
// when the top dpBits bits of its x high limb are zero.
func (s *Solver) setDP(bits int) {
	if bits < 0 {
		bits = 0
	}
	if bits > 64 {
		bits = 64
	}
	s.dpBits = bits
	if bits == 0 {
		s.dpMask = 0
	} else {
		s.dpMask = ^((uint64(1) << (64 - bits)) - 1)
	}
	fmt.Printf("DP size: %d [0x%016X]\n", s.dpBits, s.dpMask)
}

func (s *Solver) isDP(xHigh uint64) bool {
	return xHigh&s.dpMask == 0
}

// initRange derives the range width and its power-of-two subdivisions.
func (s *Solver) initRange() {
	s.rangeWidth = s.rangeEnd.sub(s.rangeStart)
	s.rangePower = s.rangeWidth.toBig().BitLen()
	fmt.Printf("Range width: 2^%d\n", s.rangePower)

	w := s.rangeWidth.toBig()
	s.rangeWidthDiv2, _ = u256FromBig(new(big.Int).Rsh(w, 1))
	s.rangeWidthDiv4, _ = u256FromBig(new(big.Int).Rsh(w, 2))
	s.rangeWidthDiv8, _ = u256FromBig(new(big.Int).Rsh(w, 3))
}

// initSearchKey translates the target by -rangeStart·G (plus -width/2·G
// with symmetry) so the walk is centred on zero, and caches its negation.
func (s *Solver) initSearchKey() {
	s.targetKey = pubKeyPoint(s.keys[s.keyIdx])

	sp := s.rangeStart.toScalar()
	if s.symmetry {
		half := s.rangeWidthDiv2.toScalar()
		sp.Add(&half)
	}

	if sp.IsZero() {
		s.keyToSearch = s.targetKey
	} else {
		rs := scalarBaseAffine(&sp)
		rs.Y = negateY(&rs.Y)
		s.keyToSearch = addAffine(&s.targetKey, &rs)
	}

	s.keyToSearchNeg = s.keyToSearch
	s.keyToSearchNeg.Y = negateY(&s.keyToSearch.Y)
}

func (s *Solver) targetKeyHex() string {
	return pubKeyCompressedHex(s.keys[s.keyIdx])
}

// Solve runs the search for every configured key and returns the solved
// results in key order. Input and I/O problems surface before any walker
// starts.
func (s *Solver) Solve(ctx context.Context) ([]Result, error) {
	if err := s.initSearch(ctx); err != nil {
		return nil, err
	}

	var results []Result
	for s.keyIdx = 0; s.keyIdx < len(s.keys); s.keyIdx++ {
		res, err := s.solveKey(ctx)
		if err != nil {
			return results, err
		}
		if res != nil {
			results = append(results, *res)
		}
		s.table.Reset()
		if ctx.Err() != nil {
			break
		}
	}
	return results, nil
}

// initSearch validates inputs and derives everything the walk needs:
// range subdivisions, the jump table, the DP mask and any resumed state.
func (s *Solver) initSearch(ctx context.Context) error {
	if err := s.parseInputs(); err != nil {
		return err
	}

	if s.clientMode() {
		if err := s.fetchServerConfig(ctx); err != nil {
			return err
		}
		// A client checkpoint can only carry kangaroos; the table lives on
		// the server.
		if s.workFile != "" {
			s.saveKangaroo = true
		}
	}

	s.rng = rand.New(rand.NewSource(s.seed))
	s.table = NewHashTable()
	s.totalRW = uint64(s.nbThread) * CPUGrpSize

	// A resumed work file overrides the configured range, key and DP size,
	// so it is loaded before anything derives from them.
	if s.inputFile != "" {
		if err := s.loadWork(s.inputFile); err != nil {
			return err
		}
	}

	s.initRange()
	s.jt = NewJumpTable(s.rangePower, s.symmetry)
	fmt.Printf("Jump Avg distance: 2^%.2f\n", math.Log2(s.jt.AvgDistance()))
	fmt.Printf("Number of CPU thread: %d\n", s.nbThread)
	fmt.Printf("Number of kangaroos: 2^%.2f\n", math.Log2(float64(s.totalRW)))

	if !s.clientMode() {
		suggested := s.suggestDP()
		if s.initDPBits < 0 {
			s.initDPBits = suggested
		}
		s.expectedNbOp, s.expectedMem, _ = s.computeExpected(float64(s.initDPBits))
		if s.nbLoadedWalk == 0 {
			fmt.Printf("Suggested DP: %d\n", suggested)
		}
		fmt.Printf("Expected operations: 2^%.2f\n", math.Log2(s.expectedNbOp))
		fmt.Printf("Expected RAM: %.1fMB\n", s.expectedMem)
	}
	s.setDP(s.initDPBits)
	return nil
}

// solveKey runs the worker fleet for the current key until the resolver
// raises endOfSearch, the abort multiplier trips, or ctx is cancelled.
func (s *Solver) solveKey(ctx context.Context) (*Result, error) {
	s.initSearchKey()
	s.endOfSearch.Store(false)
	s.solution = nil
	s.deadKang.Store(0)
	s.tameCount.Store(0)
	s.wildCount.Store(0)
	s.gapMu.Lock()
	s.gapSeen = false
	s.gapMu.Unlock()

	s.counters = make([]atomic.Uint64, s.nbThread)
	s.waiting = make([]atomic.Bool, s.nbThread)
	s.started = make([]atomic.Bool, s.nbThread)

	workers := make([]Worker, s.nbThread)
	for i := 0; i < s.nbThread; i++ {
		herd := newHerd(CPUGrpSize)
		s.createHerd(herd, TAME)
		w := newCPUWorker(i, s, herd)
		if s.nbLoadedWalk > 0 {
			s.restoreInto(w)
		}
		workers[i] = w
		if s.keyIdx == 0 {
			fmt.Printf("SolveKeyCPU Thread %d: %d kangaroos\n", i, CPUGrpSize)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			s.runWorker(runCtx, w)
		}(w)
	}

	// Gap scanner runs off the critical path.
	var gapWg sync.WaitGroup
	gapWg.Add(1)
	go func() {
		defer gapWg.Done()
		s.scanGaps(runCtx)
	}()

	startTime := time.Now()
	s.process(runCtx, workers, startTime)

	s.endOfSearch.Store(true)
	cancel()
	wg.Wait()
	gapWg.Wait()
	s.waitForAsyncSave()

	// Loaded kangaroos only seed the first key.
	s.nbLoadedWalk = 0
	s.loadedKangaroos = nil

	if s.solution != nil {
		s.solution.Count = s.totalCount() + s.offsetCount
		s.solution.Time = time.Since(startTime)
		s.solution.DeadKangaroos = s.deadKang.Load()
	}
	return s.solution, nil
}

// runWorker drives one worker until the end of the search, pausing at the
// checkpoint barrier when a save is pending.
func (s *Solver) runWorker(ctx context.Context, w Worker) {
	id := w.ID()
	s.started[id].Store(true)
	lastSent := time.Now()

	for !s.endOfSearch.Load() {
		if ctx.Err() != nil {
			return
		}

		hits := w.Step()
		if s.clientMode() {
			s.bufferHits(hits)
			if time.Since(lastSent) > sendPeriod {
				s.flushHits(ctx, id)
				lastSent = time.Now()
			}
		} else if len(hits) > 0 {
			s.commitHits(w, hits)
		}

		if !s.endOfSearch.Load() {
			s.counters[id].Add(w.NbKangaroo())
		}

		if s.saveRequest.Load() && !s.endOfSearch.Load() {
			// Park until the checkpointer, which holds saveMu while it
			// snapshots, lets the herd move again.
			s.waiting[id].Store(true)
			s.saveMu.Lock()
			s.saveMu.Unlock() //nolint:staticcheck // barrier, not a critical section
			s.waiting[id].Store(false)
		}
	}
}

// commitHits inserts a step's distinguished points under the table lock,
// resolving collisions as they appear.
func (s *Solver) commitHits(w Worker, hits []DpHit) {
	s.ghMu.Lock()
	defer s.ghMu.Unlock()
	for i := range hits {
		if s.endOfSearch.Load() {
			return
		}
		h := &hits[i]
		status, kDist, kType := s.table.Add(h.X, &h.D, h.KType)
		switch status {
		case AddOK:
			if h.KType == TAME {
				s.tameCount.Add(1)
			} else {
				s.wildCount.Add(1)
			}
		case AddCollisionSame:
			// Two walkers of the same herd merged; replace one and go on.
			w.ResetKangaroo(h.KIdx, h.KType)
			s.deadKang.Add(1)
		case AddCollisionCross:
			s.collisionCheck(&kDist, kType, &h.D, h.KType)
		}
	}
}

// submitDP is the server-side entry point for DPs received from clients.
func (s *Solver) submitDP(x uint256, d *secp256k1.ModNScalar, kType uint32) {
	s.ghMu.Lock()
	defer s.ghMu.Unlock()
	if s.endOfSearch.Load() {
		return
	}
	status, kDist, kt := s.table.Add(x, d, kType)
	switch status {
	case AddOK:
		if kType == TAME {
			s.tameCount.Add(1)
		} else {
			s.wildCount.Add(1)
		}
	case AddCollisionSame:
		s.deadKang.Add(1)
	case AddCollisionCross:
		s.collisionCheck(&kDist, kt, d, kType)
	}
}

func (s *Solver) bufferHits(hits []DpHit) {
	if len(hits) == 0 {
		return
	}
	s.dpBufMu.Lock()
	s.dpBuf = append(s.dpBuf, hits...)
	s.dpBufMu.Unlock()
}

func (s *Solver) flushHits(ctx context.Context, workerID int) {
	s.dpBufMu.Lock()
	batch := s.dpBuf
	s.dpBuf = nil
	s.dpBufMu.Unlock()
	if len(batch) == 0 || s.sender == nil {
		return
	}
	if err := s.sender.SendDP(ctx, workerID, batch); err != nil {
		fmt.Printf("\nSendToServer: %v\n", err)
		// Put the batch back so the points are not lost.
		s.dpBufMu.Lock()
		s.dpBuf = append(batch, s.dpBuf...)
		s.dpBufMu.Unlock()
	}
}

// restoreInto hands a contiguous slice of loaded kangaroo states to a
// worker, in worker-id order.
func (s *Solver) restoreInto(w *cpuWorker) {
	per := CPUGrpSize
	from := w.id * per
	if from >= len(s.loadedKangaroos) {
		return
	}
	to := from + per
	if to > len(s.loadedKangaroos) {
		to = len(s.loadedKangaroos)
	}
	w.RestoreState(s.loadedKangaroos[from:to])
}

func (s *Solver) totalCount() uint64 {
	var c uint64
	for i := range s.counters {
		c += s.counters[i].Load()
	}
	return c
}

func (s *Solver) allStarted() bool {
	for i := range s.started {
		if !s.started[i].Load() {
			return false
		}
	}
	return true
}

func (s *Solver) allWaiting() bool {
	for i := range s.waiting {
		if !s.waiting[i].Load() {
			return false
		}
	}
	return true
}

// process is the coordinator loop: statistics, checkpoint ticks and the
// abort multiplier. It returns once endOfSearch is raised or ctx ends.
func (s *Solver) process(ctx context.Context, workers []Worker, startTime time.Time) {
	for !s.allStarted() && ctx.Err() == nil {
		time.Sleep(5 * time.Millisecond)
	}

	var filter rateFilter
	lastCount := s.totalCount()
	lastSave := time.Now()
	t0 := time.Now()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for !s.endOfSearch.Load() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		count := s.totalCount()
		t1 := time.Now()
		rate := float64(count-lastCount) / t1.Sub(t0).Seconds()
		avgRate := filter.add(rate)
		lastCount = count
		t0 = t1

		if !s.endOfSearch.Load() {
			s.printStatus(count, avgRate, startTime)
		}

		if (s.workFile != "" || s.workTextFile != "") && !s.endOfSearch.Load() {
			if time.Since(lastSave) > s.savePeriod {
				if s.asyncSave.Load() {
					fmt.Printf("\nSaveWork: previous async save still in progress, skipping interval\n")
				} else {
					s.saveWork(count+s.offsetCount, time.Since(startTime).Seconds()+s.offsetTime, workers)
				}
				lastSave = time.Now()
			}
		}

		if !s.clientMode() && s.maxStep > 0 {
			if float64(count) > s.expectedNbOp*s.maxStep {
				fmt.Printf("\nKey#%2d [XX]Pub:  0x%s \n", s.keyIdx, s.targetKeyHex())
				fmt.Printf("       Aborted !\n")
				s.endOfSearch.Store(true)
			}
		}
	}
}

// printStatus renders the rolling status line.
func (s *Solver) printStatus(count uint64, avgRate float64, startTime time.Time) {
	tw := 0.0
	if w := s.wildCount.Load(); w > 0 {
		tw = float64(s.tameCount.Load()) / float64(w)
	}

	s.gapMu.Lock()
	curGap := gapToFloat(s.lastGap)
	lowGap := gapToFloat(s.lowestGap)
	seen := s.gapSeen
	s.gapMu.Unlock()
	if !seen {
		curGap, lowGap = 0, 0
	}

	elapsed := time.Since(startTime).Seconds() + s.offsetTime
	if s.clientMode() {
		fmt.Printf("\r[%.2f MK/s][Count 2^%.2f][T/W:%.3f][Gap:%.1f][L.Gap:%.1f][%s]  ",
			avgRate/1e6,
			math.Log2(float64(count)+float64(s.offsetCount)),
			tw, curGap, lowGap,
			formatDuration(elapsed))
		return
	}

	eta := 0.0
	if avgRate > 0 {
		eta = s.expectedNbOp / avgRate
	}
	fmt.Printf("\r[%.2f MK/s][Count 2^%.2f][Dead %d][T/W:%.3f][Gap:%.1f][L.Gap:%.1f][%s (Avg %s)][%s]  ",
		avgRate/1e6,
		math.Log2(float64(count)+float64(s.offsetCount)),
		s.deadKang.Load(),
		tw, curGap, lowGap,
		formatDuration(elapsed), formatDuration(eta),
		s.tableSizeInfo())
}

func (s *Solver) tableSizeInfo() string {
	s.ghMu.Lock()
	defer s.ghMu.Unlock()
	return s.table.sizeInfo()
}
