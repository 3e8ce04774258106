package labels

import (
	"fmt"
	"slices"
	"sort"
)

// HasUnlabeled 判断是否存在没有被任何片段覆盖的时间窗中心。
// 时间窗中心 c 被片段覆盖当且仅当 onset <= c < offset。
func HasUnlabeled(lbls []Symbol, onsets, offsets, centers []float64) (bool, error) {
	if len(lbls) != len(onsets) || len(onsets) != len(offsets) {
		return false, fmt.Errorf("%w: %d labels, %d onsets, %d offsets",
			ErrLengthMismatch, len(lbls), len(onsets), len(offsets))
	}
	if len(centers) == 0 {
		return false, nil
	}
	if len(onsets) == 0 {
		return true, nil
	}

	type interval struct{ on, off float64 }
	ivs := make([]interval, len(onsets))
	for i := range onsets {
		ivs[i] = interval{onsets[i], offsets[i]}
	}
	slices.SortFunc(ivs, func(a, b interval) int {
		switch {
		case a.on < b.on:
			return -1
		case a.on > b.on:
			return 1
		}
		return 0
	})

	// reach[i] 是前 i+1 个片段 offset 的最大值
	reach := make([]float64, len(ivs))
	for i, iv := range ivs {
		reach[i] = iv.off
		if i > 0 && reach[i-1] > reach[i] {
			reach[i] = reach[i-1]
		}
	}

	for _, c := range centers {
		k := sort.Search(len(ivs), func(i int) bool { return ivs[i].on > c })
		if k == 0 || reach[k-1] <= c {
			return true, nil
		}
	}
	return false, nil
}
