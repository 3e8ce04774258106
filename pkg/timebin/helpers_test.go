package timebin

import (
	"math"
	"testing"

	"github.com/yleoer/tbseg/pkg/labels"
)

// arange mirrors numpy.arange(start, stop, step).
func arange(start, stop, step float64) []float64 {
	n := int(math.Round((stop - start) / step))
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// jitter adds +eps/-eps alternately to each element.
func jitter(x []float64, eps float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if i%2 == 0 {
			out[i] = v + eps
		} else {
			out[i] = v - eps
		}
	}
	return out
}

// allClose mirrors numpy.allclose: |a-b| <= atol + rtol*|b| for every element.
func allClose(a, b []float64, atol, rtol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > atol+rtol*math.Abs(b[i]) {
			return false
		}
	}
	return true
}

func mustMap(t *testing.T, alphabet []labels.Symbol, unlabeled bool, opts ...labels.Option) *labels.Map {
	t.Helper()
	m, err := labels.BuildMap(alphabet, unlabeled, opts...)
	if err != nil {
		t.Fatalf("BuildMap: %v", err)
	}
	return m
}
