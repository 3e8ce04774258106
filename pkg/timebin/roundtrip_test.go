package timebin

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/yleoer/tbseg/pkg/labels"
)

func TestRoundTrip_BinAligned(t *testing.T) {
	t.Parallel()

	m := mustMap(t, labels.Strs("a", "b", "c"), true)
	const dur = 0.25
	centers := arange(0, 10, dur)
	segs := []Segment{
		{Label: labels.Str("a"), Onset: 1, Offset: 2},
		{Label: labels.Str("b"), Onset: 2.5, Offset: 4},
		{Label: labels.Str("c"), Onset: 7, Offset: 9.5},
	}

	vec, err := Encode("f", segs, centers, m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(vec, m, dur)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !slices.Equal(got, segs) {
		t.Errorf("Decode(Encode(segs)) = %v, want %v", got, segs)
	}
}

func TestRoundTrip_BinAlignedRandom(t *testing.T) {
	t.Parallel()

	m := mustMap(t, labels.Ints(1, 2, 3, 4), true)
	rng := rand.New(rand.NewPCG(1, 2))
	const dur = 0.125 // exactly representable

	for trial := 0; trial < 200; trial++ {
		var segs []Segment
		bin := rng.IntN(4)
		prev := 0
		for bin < 400 {
			n := 1 + rng.IntN(20)
			code := 1 + rng.IntN(4)
			if code == prev && len(segs) > 0 && segs[len(segs)-1].Offset == float64(bin)*dur {
				code = code%4 + 1
			}
			segs = append(segs, Segment{
				Label:  labels.Int(code),
				Onset:  float64(bin) * dur,
				Offset: float64(bin+n) * dur,
			})
			prev = code
			bin += n + rng.IntN(3) // zero-width gaps keep segments touching
		}
		centers := arange(0, float64(bin+5)*dur, dur)

		vec, err := Encode("f", segs, centers, m)
		if err != nil {
			t.Fatalf("trial %d: Encode: %v", trial, err)
		}
		got, err := Decode(vec, m, dur)
		if err != nil {
			t.Fatalf("trial %d: Decode: %v", trial, err)
		}
		if !slices.Equal(got, segs) {
			t.Fatalf("trial %d: Decode(Encode(segs)) = %v, want %v", trial, got, segs)
		}
	}
}

// Bin-quantised reconstruction of real-valued boundaries, checked the way the
// annotation evaluation does: within 1 bin absolute and 3% relative.
func TestRoundTrip_RecoversOnsetsOffsetsLabels(t *testing.T) {
	t.Parallel()

	m := mustMap(t, labels.Strs("a", "b", "c", "d"), true)
	const dur = 0.001
	centers := arange(0, 10, dur)
	want := []Segment{
		{Label: labels.Str("a"), Onset: 1, Offset: 2},
		{Label: labels.Str("b"), Onset: 3, Offset: 4},
		{Label: labels.Str("c"), Onset: 5, Offset: 6},
		{Label: labels.Str("d"), Onset: 7, Offset: 8},
	}

	vec, err := Encode("f", want, centers, m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(vec, m, dur)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	checkApprox(t, got, want, dur)
}

func TestRoundTrip_RealValuedRandom(t *testing.T) {
	t.Parallel()

	m := mustMap(t, labels.Strs("a", "b", "c"), true)
	rng := rand.New(rand.NewPCG(7, 11))
	const dur = 0.002
	names := []string{"a", "b", "c"}

	for trial := 0; trial < 50; trial++ {
		var want []Segment
		t0 := 0.01 + rng.Float64()*0.05
		for i := 0; i < 20; i++ {
			length := 0.02 + rng.Float64()*0.2
			want = append(want, Segment{Label: labels.Str(names[rng.IntN(3)]), Onset: t0, Offset: t0 + length})
			t0 += length + 0.01 + rng.Float64()*0.1
		}
		centers := arange(0, t0+0.1, dur)

		vec, err := Encode("f", want, centers, m)
		if err != nil {
			t.Fatalf("trial %d: Encode: %v", trial, err)
		}
		got, err := Decode(vec, m, dur)
		if err != nil {
			t.Fatalf("trial %d: Decode: %v", trial, err)
		}
		checkApprox(t, got, want, dur)
	}
}

func checkApprox(t *testing.T, got, want []Segment, dur float64) {
	t.Helper()
	gotLabels, gotOn, gotOff := Columns(got)
	wantLabels, wantOn, wantOff := Columns(want)
	if !slices.Equal(gotLabels, wantLabels) {
		t.Fatalf("labels = %v, want %v", gotLabels, wantLabels)
	}
	if !allClose(gotOn, wantOn, dur, 0.03) {
		t.Errorf("onsets = %v, want %v", gotOn, wantOn)
	}
	if !allClose(gotOff, wantOff, dur, 0.03) {
		t.Errorf("offsets = %v, want %v", gotOff, wantOff)
	}
}
