// Package dataset 定义数据集中的文件对、解析结果以及输出的标签向量文档
package dataset

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/yleoer/tbseg/pkg/labels"
	"github.com/yleoer/tbseg/pkg/timebin"
	"github.com/yleoer/tbseg/pkg/util"
)

// Item 代表数据集中一个音频文件对应的一对输入文件
type Item struct {
	Stem         string    // 音频文件名，例如 "bird1.wav"
	Dir          string    // 所在目录
	AnnotPath    string    // <stem>.annot.csv
	TimebinsPath string    // <stem>.tb.txt
	ModTime      time.Time // 两个输入文件中较新的修改时间
}

// NewItem 根据目录和 stem 构造 Item
func NewItem(dir, stem string) *Item {
	return &Item{
		Stem:         stem,
		Dir:          dir,
		AnnotPath:    filepath.Join(dir, stem+util.AnnotSuffix),
		TimebinsPath: filepath.Join(dir, stem+util.TimebinsSuffix),
	}
}

// Key 返回 Item 在状态库中的唯一键
func (it *Item) Key() string { return it.AnnotPath }

// VectorPath 返回输出向量文件的路径，保持数据集内的相对目录结构
func (it *Item) VectorPath(root, outDir string) string {
	return it.outputPath(root, outDir, util.VectorSuffix)
}

func (it *Item) outputPath(root, outDir, suffix string) string {
	rel, err := filepath.Rel(root, it.Dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = ""
	}
	return filepath.Join(outDir, rel, it.Stem+suffix)
}

// File 代表一个已解析的数据集文件：注释片段与时间窗中心
type File struct {
	Item     *Item
	Segments []timebin.Segment
	Centers  []float64
}

// Timebins 返回用于时长校验的视图
func (f *File) Timebins() timebin.FileTimebins {
	return timebin.FileTimebins{File: f.Item.Stem, Centers: f.Centers}
}

// Labels 返回按出现顺序排列的标签序列
func (f *File) Labels() []labels.Symbol {
	out := make([]labels.Symbol, len(f.Segments))
	for i, s := range f.Segments {
		out[i] = s.Label
	}
	return out
}

// Vector 是 <stem>.lbl_tb.json 的内容
type Vector struct {
	File         string  `json:"file"`
	TimebinDur   float64 `json:"timebin_dur"`
	HasUnlabeled bool    `json:"has_unlabeled"`
	Labels       []int   `json:"labels"`
}
