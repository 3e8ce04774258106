package timebin

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/yleoer/tbseg/pkg/labels"
)

// Decode 是 Encode 的逆操作：对向量做游程解码，得到按 onset 升序的片段列表。
//
// 未标注代码的区间被丢弃；其余每个最长区间（包括长度为 1 的区间）都成为一个片段，
// onset = Start*dur，offset = (End+1)*dur。相邻的同标签片段在向量中无法区分，会合并为一个。
func Decode(vec []int, m *labels.Map, dur float64) ([]Segment, error) {
	if !(dur > 0) || math.IsInf(dur, 0) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidDuration, dur)
	}

	var (
		syms   []labels.Symbol
		starts []float64
		ends   []float64
	)
	for r := range Runs(vec) {
		c, err := m.Class(r.Code)
		if err != nil {
			return nil, fmt.Errorf("run at bins [%d, %d]: %w", r.Start, r.End, err)
		}
		sym, ok := c.Symbol()
		if !ok {
			continue
		}
		syms = append(syms, sym)
		starts = append(starts, float64(r.Start))
		ends = append(ends, float64(r.End+1))
	}

	onsets := make([]float64, len(starts))
	offsets := make([]float64, len(ends))
	vecmath.ScaleBlock(onsets, starts, dur)
	vecmath.ScaleBlock(offsets, ends, dur)

	return FromColumns(syms, onsets, offsets)
}
