package kangaroo

import (
	"context"
	"fmt"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// filterSize is the window of the key-rate smoothing filter.
const filterSize = 8

// rateFilter smooths the displayed key rate over the last filterSize
// samples.
type rateFilter struct {
	samples [filterSize]float64
	pos     int
}

func (f *rateFilter) add(rate float64) float64 {
	f.samples[f.pos%filterSize] = rate
	f.pos++
	n := f.pos
	if n > filterSize {
		n = filterSize
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += f.samples[i]
	}
	return sum / float64(n)
}

// formatDuration renders seconds the way the status line expects:
// "%.1fd" above a day, "%.1fy" above a year ("%gy" from five years),
// otherwise hh:mm:ss with short forms.
func formatDuration(seconds float64) string {
	days := seconds / 86400.0
	if days >= 1 {
		years := days / 365.0
		if years > 1 {
			if years < 5 {
				return fmt.Sprintf("%.1fy", years)
			}
			return fmt.Sprintf("%gy", years)
		}
		return fmt.Sprintf("%.1fd", days)
	}
	t := int(seconds)
	h := (t % 86400) / 3600
	m := ((t % 86400) % 3600) / 60
	sec := t % 60
	if h == 0 {
		if m == 0 {
			return fmt.Sprintf("%02ds", sec)
		}
		return fmt.Sprintf("%02d:%02d", m, sec)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

// gapToFloat collapses a gap magnitude to a display value scaled by 1e-9.
// Only the low 128 bits are ever populated.
func gapToFloat(g uint256) float64 {
	lo := float64(g[0])
	hi := float64(g[1])
	return (hi*18446744073709551616.0 + lo) / 1e9
}

// scanGaps periodically walks the table measuring the distance gap between
// tame and wild entries that share a bucket. The minimum observed gap is a
// progress hint: it shrinks as the herds close in on a collision. Runs
// until the search ends; each bucket is copied out under the table lock so
// the scan never blocks walkers for long.
func (s *Solver) scanGaps(ctx context.Context) {
	type scanned struct {
		d     secp256k1.ModNScalar
		kType uint32
	}

	for !s.endOfSearch.Load() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
		if s.endOfSearch.Load() {
			return
		}

		var localLast uint256
		localMin := uint256{^uint64(0), ^uint64(0) >> 2}
		found := false

		for h := uint64(0); h < HashSize && !s.endOfSearch.Load(); h++ {
			var items []scanned
			s.ghMu.Lock()
			bucket := s.table.bucket(h)
			if len(bucket) > 1 {
				items = make([]scanned, len(bucket))
				for i := range bucket {
					d, kt := unpackDist(bucket[i].d)
					items[i] = scanned{d: d, kType: kt}
				}
			}
			s.ghMu.Unlock()

			for i := 0; i < len(items); i++ {
				for j := i + 1; j < len(items); j++ {
					if items[i].kType == items[j].kType {
						continue
					}
					diff := items[i].d
					neg := items[j].d
					neg.Negate()
					diff.Add(&neg)
					if diff.IsOverHalfOrder() {
						diff.Negate()
					}
					gap := scalarToU256(&diff)
					found = true
					localLast = gap
					if gap.cmp(localMin) < 0 {
						localMin = gap
					}
				}
			}
		}

		if found {
			s.gapMu.Lock()
			s.lastGap = localLast
			if !s.gapSeen || localMin.cmp(s.lowestGap) < 0 {
				s.lowestGap = localMin
			}
			s.gapSeen = true
			s.gapMu.Unlock()
		}
	}
}
