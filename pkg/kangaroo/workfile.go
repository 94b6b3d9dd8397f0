package kangaroo

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Work file magics. headWork files carry the full search state; the
// kangaroo-only variants carry walk positions produced by clients (the
// compressed form is accepted on read).
const (
	headWork           uint32 = 0xFA6A8001
	headKangaroo       uint32 = 0xFA6A8002
	headKangarooPacked uint32 = 0xFA6A8003

	workFileVersion uint32 = 0
)

// workFileData is a fully parsed work file.
type workFileData struct {
	head       uint32
	version    uint32
	dpBits     uint32
	rangeStart uint256
	rangeEnd   uint256
	keyX       uint256
	keyY       uint256
	totalCount uint64
	totalTime  float64
	buckets    [][]hashEntry
	bucketCaps []uint32
	kangaroos  []KangarooState
}

func log2u(v uint64) float64 {
	if v == 0 {
		return 0
	}
	return math.Log2(float64(v))
}

func pubKeyFromCoords(x, y uint256) (*secp256k1.PublicKey, error) {
	fx := x.toField()
	fy := y.toField()
	pub := secp256k1.NewPublicKey(&fx, &fy)
	// Round-trip through the parser to reject off-curve coordinates.
	if _, err := secp256k1.ParsePubKey(pub.SerializeUncompressed()); err != nil {
		return nil, fmt.Errorf("%w: stored key is not on the curve", ErrWorkFileCorrupt)
	}
	return pub, nil
}

// --- binary encoding (little-endian throughout) ---

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeU64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeF64(w io.Writer, v float64) error {
	return writeU64(w, math.Float64bits(v))
}

func writeU256(w io.Writer, v uint256) error {
	var b [32]byte
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint64(b[8*i:], v[i])
	}
	_, err := w.Write(b[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readF64(r io.Reader) (float64, error) {
	v, err := readU64(r)
	return math.Float64frombits(v), err
}

func readU256(r io.Reader) (uint256, error) {
	var b [32]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return uint256{}, err
	}
	var u uint256
	for i := 0; i < 4; i++ {
		u[i] = binary.LittleEndian.Uint64(b[8*i:])
	}
	return u, nil
}

// writeWorkFile serialises a snapshot and returns the file size.
func writeWorkFile(path string, snap *workSnapshot) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot open %s for writing: %v", ErrIO, path, err)
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 1<<20)

	if err := writeSnapshotTo(w, snap); err != nil {
		return 0, fmt.Errorf("%w: writing %s: %v", ErrIO, path, err)
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("%w: writing %s: %v", ErrIO, path, err)
	}
	info, err := f.Stat()
	if err != nil {
		return 0, nil
	}
	return info.Size(), nil
}

func writeSnapshotTo(w io.Writer, snap *workSnapshot) error {
	if err := writeU32(w, snap.headType); err != nil {
		return err
	}
	if err := writeU32(w, workFileVersion); err != nil {
		return err
	}

	if snap.headType == headWork {
		if err := writeU32(w, snap.dpBits); err != nil {
			return err
		}
		for _, v := range []uint256{snap.rangeStart, snap.rangeEnd, snap.keyX, snap.keyY} {
			if err := writeU256(w, v); err != nil {
				return err
			}
		}
		if err := writeU64(w, snap.totalCount); err != nil {
			return err
		}
		if err := writeF64(w, snap.totalTime); err != nil {
			return err
		}

		off := 0
		for h := 0; h < HashSize; h++ {
			nb := snap.bucketLen[h]
			if err := writeU32(w, nb); err != nil {
				return err
			}
			if err := writeU32(w, snap.bucketCap[h]); err != nil {
				return err
			}
			for i := uint32(0); i < nb; i++ {
				e := snap.entries[off]
				off++
				if err := writeU256(w, uint256{e.x[0], e.x[1]}); err != nil {
					return err
				}
				if err := writeU256(w, uint256{e.d[0], e.d[1]}); err != nil {
					return err
				}
				_, kType := unpackDist(e.d)
				if err := writeU32(w, kType); err != nil {
					return err
				}
			}
		}
	}

	if err := writeU64(w, uint64(len(snap.kangaroos))); err != nil {
		return err
	}
	for _, k := range snap.kangaroos {
		if err := writeU256(w, k.X); err != nil {
			return err
		}
		if err := writeU256(w, k.Y); err != nil {
			return err
		}
		if err := writeU256(w, k.D); err != nil {
			return err
		}
	}
	return nil
}

// readWorkFile parses a binary work file, validating structure as it goes.
func readWorkFile(path string) (*workFileData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s: %v", ErrIO, path, err)
	}
	defer f.Close()
	r := bufio.NewReaderSize(f, 1<<20)

	wf := &workFileData{}
	if wf.head, err = readU32(r); err != nil {
		return nil, fmt.Errorf("%w: %s: cannot read header", ErrWorkFileCorrupt, path)
	}
	switch wf.head {
	case headWork, headKangaroo, headKangarooPacked:
	default:
		return nil, fmt.Errorf("%w: %s: bad magic 0x%08X", ErrWorkFileCorrupt, path, wf.head)
	}
	if wf.version, err = readU32(r); err != nil {
		return nil, fmt.Errorf("%w: %s: truncated header", ErrWorkFileCorrupt, path)
	}
	if wf.version != workFileVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrWorkFileCorrupt, path, wf.version)
	}

	if wf.head == headWork {
		if wf.dpBits, err = readU32(r); err != nil {
			return nil, fmt.Errorf("%w: %s: truncated header", ErrWorkFileCorrupt, path)
		}
		if wf.dpBits > 64 {
			return nil, fmt.Errorf("%w: %s: invalid dp size %d", ErrWorkFileCorrupt, path, wf.dpBits)
		}
		hdr := []*uint256{&wf.rangeStart, &wf.rangeEnd, &wf.keyX, &wf.keyY}
		for _, dst := range hdr {
			if *dst, err = readU256(r); err != nil {
				return nil, fmt.Errorf("%w: %s: truncated header", ErrWorkFileCorrupt, path)
			}
		}
		if wf.totalCount, err = readU64(r); err != nil {
			return nil, fmt.Errorf("%w: %s: truncated header", ErrWorkFileCorrupt, path)
		}
		if wf.totalTime, err = readF64(r); err != nil {
			return nil, fmt.Errorf("%w: %s: truncated header", ErrWorkFileCorrupt, path)
		}

		wf.buckets = make([][]hashEntry, HashSize)
		wf.bucketCaps = make([]uint32, HashSize)
		for h := 0; h < HashSize; h++ {
			nb, err := readU32(r)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: truncated bucket %d", ErrWorkFileCorrupt, path, h)
			}
			maxItem, err := readU32(r)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: truncated bucket %d", ErrWorkFileCorrupt, path, h)
			}
			if nb > maxItem {
				return nil, fmt.Errorf("%w: %s: bucket %d holds %d items over capacity %d",
					ErrWorkFileCorrupt, path, h, nb, maxItem)
			}
			wf.bucketCaps[h] = maxItem
			if nb == 0 {
				continue
			}
			items := make([]hashEntry, 0, nb)
			for i := uint32(0); i < nb; i++ {
				x, err := readU256(r)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: truncated bucket %d", ErrWorkFileCorrupt, path, h)
				}
				d, err := readU256(r)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: truncated bucket %d", ErrWorkFileCorrupt, path, h)
				}
				kType, err := readU32(r)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: truncated bucket %d", ErrWorkFileCorrupt, path, h)
				}
				if x[2] != 0 || x[3] != 0 || d[2] != 0 || d[3] != 0 {
					return nil, fmt.Errorf("%w: %s: bucket %d entry %d has non-zero upper bits",
						ErrWorkFileCorrupt, path, h, i)
				}
				if kType > 1 || uint32(d[1]>>63) != kType {
					return nil, fmt.Errorf("%w: %s: bucket %d entry %d type mismatch",
						ErrWorkFileCorrupt, path, h, i)
				}
				items = append(items, hashEntry{x: [2]uint64{x[0], x[1]}, d: [2]uint64{d[0], d[1]}})
			}
			wf.buckets[h] = items
		}
	}

	nbK, err := readU64(r)
	if err != nil {
		if wf.head == headWork {
			// Older files may end after the table.
			return wf, nil
		}
		return nil, fmt.Errorf("%w: %s: truncated kangaroo count", ErrWorkFileCorrupt, path)
	}
	for i := uint64(0); i < nbK; i++ {
		var k KangarooState
		if k.X, err = readU256(r); err != nil {
			return nil, fmt.Errorf("%w: %s: truncated kangaroo %d", ErrWorkFileCorrupt, path, i)
		}
		if k.Y, err = readU256(r); err != nil {
			return nil, fmt.Errorf("%w: %s: truncated kangaroo %d", ErrWorkFileCorrupt, path, i)
		}
		if k.D, err = readU256(r); err != nil {
			return nil, fmt.Errorf("%w: %s: truncated kangaroo %d", ErrWorkFileCorrupt, path, i)
		}
		wf.kangaroos = append(wf.kangaroos, k)
	}

	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: %s: trailing data", ErrWorkFileCorrupt, path)
	}
	return wf, nil
}

// --- text encoding ---

// writeWorkFileText mirrors the binary format line by line for inspection
// and bulk diff.
func writeWorkFileText(path string, snap *workSnapshot) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot open %s for writing: %v", ErrIO, path, err)
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 1<<20)

	fmt.Fprintf(w, "VERSION %d\n", workFileVersion)
	fmt.Fprintf(w, "DP_BITS %d\n", snap.dpBits)
	fmt.Fprintf(w, "START %s\n", snap.rangeStart.hex())
	fmt.Fprintf(w, "STOP %s\n", snap.rangeEnd.hex())
	fmt.Fprintf(w, "KEYX %s\n", snap.keyX.hex())
	fmt.Fprintf(w, "KEYY %s\n", snap.keyY.hex())
	fmt.Fprintf(w, "COUNT %d\n", snap.totalCount)
	fmt.Fprintf(w, "TIME %.17g\n", snap.totalTime)
	fmt.Fprintf(w, "HASH_SIZE %d\n", HashSize)

	off := 0
	for h := 0; h < HashSize; h++ {
		nb := snap.bucketLen[h]
		fmt.Fprintf(w, "BUCKET %d %d %d\n", h, nb, snap.bucketCap[h])
		for i := uint32(0); i < nb; i++ {
			e := snap.entries[off]
			off++
			_, kType := unpackDist(e.d)
			fmt.Fprintf(w, "ITEM %s %s %d\n",
				uint256{e.x[0], e.x[1]}.hex(),
				uint256{e.d[0], e.d[1]}.hex(),
				kType)
		}
	}

	fmt.Fprintf(w, "KANGAROOS %d\n", len(snap.kangaroos))
	for _, k := range snap.kangaroos {
		fmt.Fprintf(w, "K %s %s %s\n", k.X.hex(), k.Y.hex(), k.D.hex())
	}

	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("%w: writing %s: %v", ErrIO, path, err)
	}
	info, err := f.Stat()
	if err != nil {
		return 0, nil
	}
	return info.Size(), nil
}

// readWorkFileText parses the text mirror back into the same structure the
// binary reader produces.
func readWorkFileText(path string) (*workFileData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s: %v", ErrIO, path, err)
	}
	defer f.Close()

	wf := &workFileData{head: headWork, buckets: make([][]hashEntry, HashSize)}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)

	fail := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s: %s", ErrWorkFileCorrupt, path, fmt.Sprintf(format, args...))
	}

	curBucket := -1
	remaining := uint32(0)
	kangaroosLeft := int64(-1)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		key := fields[0]
		if len(fields) < 2 {
			return nil, fail("malformed %s line", key)
		}
		switch key {
		case "VERSION":
			// informational
		case "DP_BITS":
			if _, err := fmt.Sscanf(fields[1], "%d", &wf.dpBits); err != nil {
				return nil, fail("bad DP_BITS")
			}
		case "START":
			if wf.rangeStart, err = u256FromHex(fields[1]); err != nil {
				return nil, fail("bad START")
			}
		case "STOP":
			if wf.rangeEnd, err = u256FromHex(fields[1]); err != nil {
				return nil, fail("bad STOP")
			}
		case "KEYX":
			if wf.keyX, err = u256FromHex(fields[1]); err != nil {
				return nil, fail("bad KEYX")
			}
		case "KEYY":
			if wf.keyY, err = u256FromHex(fields[1]); err != nil {
				return nil, fail("bad KEYY")
			}
		case "COUNT":
			if _, err := fmt.Sscanf(fields[1], "%d", &wf.totalCount); err != nil {
				return nil, fail("bad COUNT")
			}
		case "TIME":
			if _, err := fmt.Sscanf(fields[1], "%g", &wf.totalTime); err != nil {
				return nil, fail("bad TIME")
			}
		case "HASH_SIZE":
			var hs int
			if _, err := fmt.Sscanf(fields[1], "%d", &hs); err != nil || hs != HashSize {
				return nil, fail("HASH_SIZE mismatch")
			}
		case "BUCKET":
			if remaining != 0 {
				return nil, fail("bucket %d short of %d items", curBucket, remaining)
			}
			var h int
			var nb, maxItem uint32
			if len(fields) != 4 {
				return nil, fail("malformed BUCKET line")
			}
			fmt.Sscanf(fields[1], "%d", &h)
			fmt.Sscanf(fields[2], "%d", &nb)
			fmt.Sscanf(fields[3], "%d", &maxItem)
			if h < 0 || h >= HashSize || nb > maxItem {
				return nil, fail("invalid bucket %d", h)
			}
			curBucket = h
			remaining = nb
		case "ITEM":
			if curBucket < 0 || remaining == 0 || len(fields) != 4 {
				return nil, fail("unexpected ITEM line")
			}
			x, err := u256FromHex(fields[1])
			if err != nil {
				return nil, fail("bad ITEM x")
			}
			d, err := u256FromHex(fields[2])
			if err != nil {
				return nil, fail("bad ITEM d")
			}
			wf.buckets[curBucket] = append(wf.buckets[curBucket],
				hashEntry{x: [2]uint64{x[0], x[1]}, d: [2]uint64{d[0], d[1]}})
			remaining--
		case "KANGAROOS":
			if remaining != 0 {
				return nil, fail("bucket %d short of %d items", curBucket, remaining)
			}
			if _, err := fmt.Sscanf(fields[1], "%d", &kangaroosLeft); err != nil {
				return nil, fail("bad KANGAROOS")
			}
		case "K":
			if kangaroosLeft <= 0 || len(fields) != 4 {
				return nil, fail("unexpected K line")
			}
			var k KangarooState
			if k.X, err = u256FromHex(fields[1]); err != nil {
				return nil, fail("bad K x")
			}
			if k.Y, err = u256FromHex(fields[2]); err != nil {
				return nil, fail("bad K y")
			}
			if k.D, err = u256FromHex(fields[3]); err != nil {
				return nil, fail("bad K d")
			}
			wf.kangaroos = append(wf.kangaroos, k)
			kangaroosLeft--
		default:
			return nil, fail("unknown key %q", key)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrIO, path, err)
	}
	if remaining != 0 {
		return nil, fail("bucket %d short of %d items", curBucket, remaining)
	}
	if kangaroosLeft > 0 {
		return nil, fail("missing %d kangaroo lines", kangaroosLeft)
	}
	return wf, nil
}

// --- utilities on work files ---

// CheckWorkFile verifies the structural integrity of a work file and
// prints a summary.
func CheckWorkFile(path string) error {
	wf, err := readWorkFile(path)
	if err != nil {
		return err
	}
	var nb uint64
	var maxBucket int
	for _, b := range wf.buckets {
		nb += uint64(len(b))
		if len(b) > maxBucket {
			maxBucket = len(b)
		}
	}
	fmt.Printf("%s: OK\n", path)
	fmt.Printf("DP bits   : %d\n", wf.dpBits)
	fmt.Printf("Start     : %s\n", wf.rangeStart.hex())
	fmt.Printf("Stop      : %s\n", wf.rangeEnd.hex())
	fmt.Printf("Count     : 2^%.2f\n", log2u(wf.totalCount))
	fmt.Printf("Time      : %s\n", formatDuration(wf.totalTime))
	fmt.Printf("DP count  : %d (max bucket %d)\n", nb, maxBucket)
	fmt.Printf("Kangaroos : %d\n", len(wf.kangaroos))
	return nil
}

// WorkFileInfo prints the header of a work file without loading the table
// into memory structures beyond the parse itself.
func WorkFileInfo(path string) error {
	wf, err := readWorkFile(path)
	if err != nil {
		return err
	}
	switch wf.head {
	case headWork:
		fmt.Printf("%s: work file\n", path)
		fmt.Printf("Version   : %d\n", wf.version)
		fmt.Printf("DP bits   : %d\n", wf.dpBits)
		fmt.Printf("Start     : %s\n", wf.rangeStart.hex())
		fmt.Printf("Stop      : %s\n", wf.rangeEnd.hex())
		fmt.Printf("Key X     : %s\n", wf.keyX.hex())
		fmt.Printf("Key Y     : %s\n", wf.keyY.hex())
		fmt.Printf("Count     : 2^%.2f\n", log2u(wf.totalCount))
		fmt.Printf("Time      : %s\n", formatDuration(wf.totalTime))
		var nb uint64
		for _, b := range wf.buckets {
			nb += uint64(len(b))
		}
		fmt.Printf("DP count  : 2^%.2f\n", log2u(nb))
	case headKangaroo, headKangarooPacked:
		fmt.Printf("%s: kangaroo only file [2^%.2f kangaroos]\n", path, log2u(uint64(len(wf.kangaroos))))
	}
	return nil
}

// MergeWorkFiles unions the distinguished points of two work files over
// the same key, range and DP size into dest. A tame/wild collision found
// while merging solves the key on the spot; the merged file is then not
// written.
func MergeWorkFiles(path1, path2, dest string) error {
	wf1, err := readWorkFile(path1)
	if err != nil {
		return err
	}
	wf2, err := readWorkFile(path2)
	if err != nil {
		return err
	}
	if wf1.head != headWork || wf2.head != headWork {
		return fmt.Errorf("%w: merge needs two full work files", ErrInput)
	}
	if wf1.rangeStart != wf2.rangeStart || wf1.rangeEnd != wf2.rangeEnd ||
		wf1.keyX != wf2.keyX || wf1.keyY != wf2.keyY {
		return fmt.Errorf("%w: work files cover different searches", ErrInput)
	}
	if wf1.dpBits != wf2.dpBits {
		return fmt.Errorf("%w: work files use different DP sizes", ErrInput)
	}

	// A minimal solver context gives the merge the collision resolver.
	s := New()
	s.rangeStart = wf1.rangeStart
	s.rangeEnd = wf1.rangeEnd
	key, err := pubKeyFromCoords(wf1.keyX, wf1.keyY)
	if err != nil {
		return err
	}
	s.keys = append(s.keys, key)
	s.table = NewHashTable()
	s.initRange()
	s.initSearchKey()

	load := func(wf *workFileData) bool {
		for h := 0; h < HashSize; h++ {
			for _, e := range wf.buckets[h] {
				status, kDist, kType := s.table.addEntry(uint64(h), e)
				if status == AddCollisionCross {
					d, kt := unpackDist(e.d)
					if s.collisionCheck(&kDist, kType, &d, kt) {
						return true
					}
				}
			}
		}
		return false
	}

	if load(wf1) || load(wf2) {
		fmt.Printf("MergeWorkFiles: key solved during merge\n")
		return nil
	}

	snap := &workSnapshot{
		headType:   headWork,
		dpBits:     wf1.dpBits,
		rangeStart: wf1.rangeStart,
		rangeEnd:   wf1.rangeEnd,
		keyX:       wf1.keyX,
		keyY:       wf1.keyY,
		totalCount: wf1.totalCount + wf2.totalCount,
		totalTime:  wf1.totalTime + wf2.totalTime,
	}
	s.snapshotTable(snap)

	size, err := writeWorkFile(dest, snap)
	if err != nil {
		return err
	}
	fmt.Printf("MergeWorkFiles: %s + %s -> %s [%.1f MB, 2^%.2f DPs]\n",
		path1, path2, dest, float64(size)/(1024.0*1024.0), log2u(s.table.NbItem()))
	return nil
}
