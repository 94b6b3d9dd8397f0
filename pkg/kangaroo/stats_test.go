package kangaroo

import (
	"testing"
)

func TestRateFilter_WindowAverage(t *testing.T) {
	var f rateFilter
	if got := f.add(100); got != 100 {
		t.Fatalf("single sample average = %v", got)
	}
	f.add(200)
	if got := f.add(300); got != 200 {
		t.Fatalf("three sample average = %v, want 200", got)
	}
	// Fill past the window; only the last filterSize samples count.
	for i := 0; i < filterSize*2; i++ {
		f.add(50)
	}
	if got := f.add(50); got != 50 {
		t.Fatalf("saturated average = %v, want 50", got)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{5, "05s"},
		{65, "01:05"},
		{3700, "01:01:40"},
		{90000, "1.0d"},
	}
	for _, tc := range cases {
		if got := formatDuration(tc.in); got != tc.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGapToFloat(t *testing.T) {
	if gapToFloat(uint256{}) != 0 {
		t.Error("zero gap must display as 0")
	}
	if got := gapToFloat(uint256{2_000_000_000}); got != 2.0 {
		t.Errorf("gap 2e9 displays as %v, want 2.0", got)
	}
}
