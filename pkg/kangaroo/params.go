package kangaroo

import "math"

// hashEntrySize is the stored cost of one distinguished point.
const hashEntrySize = 32

// computeExpected returns the expected operation count, memory (MB) and DP
// overhead factor for a given distinguished point size.
//
// With k kangaroos and theta = 2^dp, the expected work is
// Z0·(N·(k·theta + sqrt(N)))^(1/3) where Z0 = 2(2-sqrt(2))·gainS·sqrt(pi)
// (gainS = 1/sqrt(2) with symmetry); the overhead is that work relative to
// the DP-free average Z0·sqrt(N).
func (s *Solver) computeExpected(dp float64) (op, ram, overhead float64) {
	gainS := 1.0
	if s.symmetry {
		gainS = 1.0 / math.Sqrt2
	}

	k := float64(s.totalRW)
	n := math.Pow(2.0, float64(s.rangePower))
	theta := math.Pow(2.0, dp)
	z0 := 2.0 * (2.0 - math.Sqrt2) * gainS * math.Sqrt(math.Pi)

	avgDP0 := z0 * math.Sqrt(n)
	op = z0 * math.Pow(n*(k*theta+math.Sqrt(n)), 1.0/3.0)

	ram = 24.0*float64(HashSize) + // bucket headers
		hashEntrySize*(op/theta) // entries
	ram /= 1024.0 * 1024.0

	overhead = op / avgDP0
	return op, ram, overhead
}

// suggestDP picks the largest distinguished point size whose work overhead
// stays within 5% of the DP-free expectation.
func (s *Solver) suggestDP() int {
	dp := int(float64(s.rangePower)/2.0 - math.Log2(float64(s.totalRW)))
	if dp < 0 {
		dp = 0
	}
	_, _, overhead := s.computeExpected(float64(dp))
	for overhead > 1.05 && dp > 0 {
		dp--
		_, _, overhead = s.computeExpected(float64(dp))
	}
	return dp
}
