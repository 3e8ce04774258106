package timebin

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/yleoer/tbseg/pkg/labels"
)

// Encode 把一个文件的片段列表转换为每个时间窗一个代码的向量，长度等于 len(centers)。
//
// 中心落在 [onset, offset) 内的时间窗取片段标签的代码，其余时间窗取未标注代码。
// 片段互相重叠、标签不在映射中、或者存在背景时间但映射没有未标注类别，都会返回错误。
func Encode(file string, segs []Segment, centers []float64, m *labels.Map) ([]int, error) {
	if !sort.Float64sAreSorted(centers) {
		return nil, fileErr(file, ErrUnsortedTimebins)
	}

	codes := make([]int, len(segs))
	for i, s := range segs {
		if err := checkSegment(s); err != nil {
			return nil, fileErr(file, fmt.Errorf("segment %d: %w", i, err))
		}
		code, err := m.Code(s.Label)
		if err != nil {
			return nil, fileErr(file, fmt.Errorf("segment %d: %w", i, err))
		}
		codes[i] = code
	}
	if err := checkOverlap(segs); err != nil {
		return nil, fileErr(file, err)
	}

	vec := make([]int, len(centers))
	unlabeled, hasUnlabeled := m.Unlabeled()
	if hasUnlabeled {
		for i := range vec {
			vec[i] = unlabeled
		}
	}

	covered := 0
	for i, s := range segs {
		lo := sort.SearchFloat64s(centers, s.Onset)
		hi := sort.SearchFloat64s(centers, s.Offset)
		for j := lo; j < hi; j++ {
			vec[j] = codes[i]
		}
		covered += hi - lo
	}
	if covered < len(centers) && !hasUnlabeled {
		return nil, fileErr(file, fmt.Errorf("%w: %d of %d bins uncovered",
			ErrNoUnlabeledClass, len(centers)-covered, len(centers)))
	}
	return vec, nil
}

func checkSegment(s Segment) error {
	switch {
	case math.IsNaN(s.Onset) || math.IsNaN(s.Offset) || math.IsInf(s.Onset, 0) || math.IsInf(s.Offset, 0):
		return fmt.Errorf("%w: non-finite bounds [%g, %g)", ErrInvalidSegment, s.Onset, s.Offset)
	case s.Onset < 0:
		return fmt.Errorf("%w: negative onset %g", ErrInvalidSegment, s.Onset)
	case s.Onset >= s.Offset:
		return fmt.Errorf("%w: onset %g not before offset %g", ErrInvalidSegment, s.Onset, s.Offset)
	}
	return nil
}

// checkOverlap 按 onset 排序后检查相邻片段
func checkOverlap(segs []Segment) error {
	order := make([]int, len(segs))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case segs[a].Onset < segs[b].Onset:
			return -1
		case segs[a].Onset > segs[b].Onset:
			return 1
		}
		return 0
	})
	for k := 1; k < len(order); k++ {
		prev, cur := segs[order[k-1]], segs[order[k]]
		if cur.Onset < prev.Offset {
			return fmt.Errorf("%w: segment %d (%s, [%g, %g)) overlaps segment %d (%s, [%g, %g))",
				ErrOverlappingSegments,
				order[k], cur.Label, cur.Onset, cur.Offset,
				order[k-1], prev.Label, prev.Onset, prev.Offset)
		}
	}
	return nil
}
