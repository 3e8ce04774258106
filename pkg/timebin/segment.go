// Package timebin 在"每个时间窗一个标签代码"的稠密向量与
// (标签, 起始, 结束) 片段列表之间做双向转换，并校验数据集的时间窗时长。
package timebin

import (
	"fmt"

	"github.com/yleoer/tbseg/pkg/labels"
)

// Segment 是一个带标签的时间片段，时间单位为秒，区间为 [Onset, Offset)
type Segment struct {
	Label  labels.Symbol
	Onset  float64
	Offset float64
}

// FileTimebins 是一个文件的时间窗中心时间戳
type FileTimebins struct {
	File    string
	Centers []float64
}

// Columns 把片段拆成三个平行数组
func Columns(segs []Segment) (lbls []labels.Symbol, onsets, offsets []float64) {
	lbls = make([]labels.Symbol, len(segs))
	onsets = make([]float64, len(segs))
	offsets = make([]float64, len(segs))
	for i, s := range segs {
		lbls[i], onsets[i], offsets[i] = s.Label, s.Onset, s.Offset
	}
	return lbls, onsets, offsets
}

// FromColumns 是 Columns 的逆操作
func FromColumns(lbls []labels.Symbol, onsets, offsets []float64) ([]Segment, error) {
	if len(lbls) != len(onsets) || len(onsets) != len(offsets) {
		return nil, fmt.Errorf("%w: %d labels, %d onsets, %d offsets",
			labels.ErrLengthMismatch, len(lbls), len(onsets), len(offsets))
	}
	segs := make([]Segment, len(lbls))
	for i := range lbls {
		segs[i] = Segment{Label: lbls[i], Onset: onsets[i], Offset: offsets[i]}
	}
	return segs, nil
}
