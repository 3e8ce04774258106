package labels

import (
	"errors"
	"slices"
	"testing"
)

func TestToSet(t *testing.T) {
	t.Parallel()

	labels1 := Ints(1, 1, 1, 1, 2, 2, 3, 3, 3)
	labels2 := Ints(1, 1, 1, 2, 2, 3, 3, 3, 3, 3)
	set := ToSet([][]Symbol{labels1, labels2})

	if got, want := set.Sorted(), Ints(1, 2, 3); !slices.Equal(got, want) {
		t.Errorf("ToSet = %v, want %v", got, want)
	}
}

func TestSet_Diff(t *testing.T) {
	t.Parallel()

	observed := ToSet([][]Symbol{Strs("a", "b", "x"), Strs("y", "a")})
	configured := ToSet([][]Symbol{Strs("a", "b", "c")})
	if got, want := observed.Diff(configured), Strs("x", "y"); !slices.Equal(got, want) {
		t.Errorf("Diff = %v, want %v", got, want)
	}
	if got := configured.Diff(configured); len(got) != 0 {
		t.Errorf("Diff with itself = %v, want empty", got)
	}
}

// arange mirrors numpy.arange(start, stop, step).
func arange(start, stop, step float64) []float64 {
	n := int((stop - start) / step)
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestHasUnlabeled(t *testing.T) {
	t.Parallel()

	lbls := Ints(1, 1, 1, 1, 2, 2, 3, 3, 3)
	onsets := []float64{0, 2, 4, 6, 8, 10, 12, 14, 16}
	timeBins := arange(0, 18, 0.001)

	t.Run("gaps between segments", func(t *testing.T) {
		offsets := []float64{1, 3, 5, 7, 9, 11, 13, 15, 17}
		has, err := HasUnlabeled(lbls, onsets, offsets, timeBins)
		if err != nil {
			t.Fatalf("HasUnlabeled: %v", err)
		}
		if !has {
			t.Error("HasUnlabeled = false, want true")
		}
	})

	t.Run("segments abut", func(t *testing.T) {
		offsets := []float64{2, 4, 6, 8, 10, 12, 14, 16, 18}
		has, err := HasUnlabeled(lbls, onsets, offsets, timeBins)
		if err != nil {
			t.Fatalf("HasUnlabeled: %v", err)
		}
		if has {
			t.Error("HasUnlabeled = true, want false")
		}
	})
}

func TestHasUnlabeled_HalfOpenBoundary(t *testing.T) {
	t.Parallel()

	lbls := Strs("a")
	tests := []struct {
		name    string
		centers []float64
		want    bool
	}{
		{"center at onset is covered", []float64{1}, false},
		{"center at offset is not covered", []float64{2}, true},
		{"center before onset", []float64{0.5}, true},
		{"no centers", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			has, err := HasUnlabeled(lbls, []float64{1}, []float64{2}, tc.centers)
			if err != nil {
				t.Fatalf("HasUnlabeled: %v", err)
			}
			if has != tc.want {
				t.Errorf("HasUnlabeled = %v, want %v", has, tc.want)
			}
		})
	}
}

func TestHasUnlabeled_NestedSegments(t *testing.T) {
	t.Parallel()

	// the long first segment covers the gap after the short one
	has, err := HasUnlabeled(Strs("a", "b"), []float64{0, 1}, []float64{10, 2}, []float64{0, 3, 5, 9.5})
	if err != nil {
		t.Fatalf("HasUnlabeled: %v", err)
	}
	if has {
		t.Error("HasUnlabeled = true, want false")
	}
}

func TestHasUnlabeled_LengthMismatch(t *testing.T) {
	t.Parallel()

	_, err := HasUnlabeled(Strs("a", "b"), []float64{0}, []float64{1}, []float64{0.5})
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("error = %v, want ErrLengthMismatch", err)
	}
}
