package kangaroo

import (
	"fmt"
	"time"
)

// workSnapshot is the compact in-memory image a checkpoint writes out
// after the workers have resumed.
type workSnapshot struct {
	headType   uint32
	dpBits     uint32
	rangeStart uint256
	rangeEnd   uint256
	keyX       uint256
	keyY       uint256
	totalCount uint64
	totalTime  float64

	bucketLen []uint32
	bucketCap []uint32
	entries   []hashEntry

	kangaroos []KangarooState
}

// snapshotTable copies the hash table bucket by bucket. Caller holds the
// table lock (or the save barrier).
func (s *Solver) snapshotTable(snap *workSnapshot) {
	snap.bucketLen = make([]uint32, HashSize)
	snap.bucketCap = make([]uint32, HashSize)
	total := s.table.NbItem()
	snap.entries = make([]hashEntry, 0, total)
	for h := 0; h < HashSize; h++ {
		items := s.table.bucket(uint64(h))
		snap.bucketLen[h] = uint32(len(items))
		snap.bucketCap[h] = uint32(cap(items))
		snap.entries = append(snap.entries, items...)
	}
}

func (s *Solver) newSnapshot(totalCount uint64, totalTime float64) *workSnapshot {
	snap := &workSnapshot{
		headType:   headWork,
		dpBits:     uint32(s.dpBits),
		rangeStart: s.rangeStart,
		rangeEnd:   s.rangeEnd,
		totalCount: totalCount,
		totalTime:  totalTime,
	}
	if s.clientMode() {
		snap.headType = headKangaroo
	}
	if len(s.keys) > 0 {
		key := pubKeyPoint(s.keys[s.keyIdx])
		snap.keyX = fieldToU256(&key.X)
		snap.keyY = fieldToU256(&key.Y)
	}
	return snap
}

// saveWork raises the quiescence barrier, captures a consistent snapshot
// of the table (and, if configured, every kangaroo) and hands it to a
// background writer. Workers resume as soon as the snapshot is built.
func (s *Solver) saveWork(totalCount uint64, totalTime float64, workers []Worker) {
	s.saveMu.Lock()
	s.saveRequest.Store(true)
	for !s.allWaiting() && !s.endOfSearch.Load() {
		time.Sleep(time.Millisecond)
	}

	snap := s.newSnapshot(totalCount, totalTime)
	s.ghMu.Lock()
	s.snapshotTable(snap)
	s.ghMu.Unlock()

	if s.saveKangaroo && !s.endOfSearch.Load() {
		for _, w := range workers {
			snap.kangaroos = append(snap.kangaroos, w.SnapshotState()...)
		}
	}

	fileName := s.workFile
	if s.splitWorkfile && fileName != "" {
		fileName = fmt.Sprintf("%s_%s", s.workFile, time.Now().Format("20060102_150405"))
		s.ghMu.Lock()
		s.table.Reset()
		s.ghMu.Unlock()
	}

	s.saveRequest.Store(false)
	s.saveMu.Unlock()

	s.asyncSave.Store(true)
	s.saveWg.Add(1)
	textFile := s.workTextFile
	go func() {
		defer s.saveWg.Done()
		defer s.asyncSave.Store(false)
		s.writeSnapshotFiles(snap, fileName, textFile)
	}()
}

func (s *Solver) writeSnapshotFiles(snap *workSnapshot, fileName, textFile string) {
	t0 := time.Now()
	if fileName != "" {
		fmt.Printf("\nSaveWork: %s", fileName)
		size, err := writeWorkFile(fileName, snap)
		if err != nil {
			fmt.Printf("\nSaveWork: %v\n", err)
		} else {
			fmt.Printf("done [%.1f MB] [%s] %s",
				float64(size)/(1024.0*1024.0),
				formatDuration(time.Since(t0).Seconds()),
				time.Now().Format(time.ANSIC)+"\n")
		}
	}
	if textFile != "" {
		fmt.Printf("\nSaveWorkTxt: %s", textFile)
		if _, err := writeWorkFileText(textFile, snap); err != nil {
			fmt.Printf("\nSaveWorkTxt: %v\n", err)
		} else {
			fmt.Printf(" done\n")
		}
	}
}

// waitForAsyncSave blocks until the in-flight background write, if any,
// has finished.
func (s *Solver) waitForAsyncSave() {
	s.saveWg.Wait()
}

// loadWork resumes a previous search: header fields replace the configured
// range/key, the table is refilled and saved kangaroos are staged for the
// workers.
func (s *Solver) loadWork(path string) error {
	wf, err := readWorkFile(path)
	if err != nil {
		return err
	}

	if wf.head == headWork {
		s.rangeStart = wf.rangeStart
		s.rangeEnd = wf.rangeEnd
		s.initDPBits = int(wf.dpBits)
		key, err := pubKeyFromCoords(wf.keyX, wf.keyY)
		if err != nil {
			return err
		}
		s.keys = s.keys[:0]
		s.keys = append(s.keys, key)
		s.offsetCount = wf.totalCount
		s.offsetTime = wf.totalTime

		for h := 0; h < HashSize; h++ {
			for _, e := range wf.buckets[h] {
				s.table.addEntry(uint64(h), e)
			}
		}
	}

	s.loadedKangaroos = wf.kangaroos
	s.nbLoadedWalk = uint64(len(wf.kangaroos))
	fmt.Printf("LoadWork: %s [2^%.2f kangaroos]\n", path, log2u(s.nbLoadedWalk))
	if s.nbLoadedWalk == 0 && wf.head == headWork {
		fmt.Printf("Warning, no kangaroo in the work file, operation count lost accuracy\n")
	}
	return nil
}
