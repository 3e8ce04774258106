package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yleoer/tbseg/pkg/database"
	"github.com/yleoer/tbseg/pkg/dataset"
	"github.com/yleoer/tbseg/pkg/labels"
	"github.com/yleoer/tbseg/pkg/observe"
	"github.com/yleoer/tbseg/pkg/parser"
	"github.com/yleoer/tbseg/pkg/timebin"
	"github.com/yleoer/tbseg/pkg/util"
)

// VectorProcessor 负责把一个已解析的文件编码为逐时间窗的标签向量并写出
type VectorProcessor struct {
	datasetRoot string
	outputDir   string
	metrics     *observe.Metrics
	logger      logrus.FieldLogger
}

// NewVectorProcessor 创建一个新的 VectorProcessor 实例
func NewVectorProcessor(datasetRoot, outputDir string, metrics *observe.Metrics, logger logrus.FieldLogger) *VectorProcessor {
	return &VectorProcessor{datasetRoot: datasetRoot, outputDir: outputDir, metrics: metrics, logger: logger}
}

// ProcessFile 编码一个文件并写出 <stem>.lbl_tb.json，返回用于状态库的记录
// dur 必须是已通过校验的数据集时间窗时长
func (p *VectorProcessor) ProcessFile(ctx context.Context, f *dataset.File, m *labels.Map, dur float64) (database.FileRecord, error) {
	start := time.Now()
	log := p.logger.WithField("file", f.Item.Stem)

	vec, err := timebin.Encode(f.Item.Stem, f.Segments, f.Centers, m)
	if err != nil {
		return database.FileRecord{}, err
	}
	lbls, onsets, offsets := timebin.Columns(f.Segments)
	hasUnlabeled, err := labels.HasUnlabeled(lbls, onsets, offsets, f.Centers)
	if err != nil {
		return database.FileRecord{}, &timebin.FileError{File: f.Item.Stem, Err: err}
	}

	outPath := f.Item.VectorPath(p.datasetRoot, p.outputDir)
	doc := dataset.Vector{
		File:         f.Item.Stem,
		TimebinDur:   dur,
		HasUnlabeled: hasUnlabeled,
		Labels:       vec,
	}
	if err := writeJSON(outPath, doc); err != nil {
		return database.FileRecord{}, fmt.Errorf("failed to write %s: %w", outPath, err)
	}

	p.metrics.RecordFile(ctx, len(vec), time.Since(start).Seconds())
	log.Infof("  -> Encoded %d segments into %d time bins (has_unlabeled=%v): %s", len(f.Segments), len(vec), hasUnlabeled, outPath)
	return database.FileRecord{
		Path:         f.Item.Key(),
		ModTime:      f.Item.ModTime,
		TimebinDur:   dur,
		NumTimebins:  len(vec),
		HasUnlabeled: hasUnlabeled,
		OutputPath:   outPath,
	}, nil
}

// DecodeVectorFile 读取 <stem>.lbl_tb.json，解码为片段并写出 CSV
// outDir 为空时写在输入文件旁边
func DecodeVectorFile(path, outDir string, m *labels.Map, logger logrus.FieldLogger) ([]timebin.Segment, string, error) {
	doc, err := ReadVector(path)
	if err != nil {
		return nil, "", err
	}
	segs, err := timebin.Decode(doc.Labels, m, doc.TimebinDur)
	if err != nil {
		return nil, "", &timebin.FileError{File: doc.File, Err: err}
	}

	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	outPath := filepath.Join(outDir, util.Stem(path)+util.SegmentsSuffix)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create output directory %s: %w", outDir, err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return nil, "", err
	}
	if err := writeSegments(out, segs); err != nil {
		return nil, "", fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	logger.WithField("file", doc.File).Infof("  -> Decoded %d time bins into %d segments: %s", len(doc.Labels), len(segs), outPath)
	return segs, outPath, nil
}

// ReadVector 读取一个标签向量文件
func ReadVector(path string) (*dataset.Vector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc dataset.Vector
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if doc.File == "" {
		doc.File = util.Stem(path)
	}
	return &doc, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return encodeJSON(f, v)
}

// encodeJSON 写出 v 并关闭 w，关闭失败同样视为写入失败
func encodeJSON(w io.WriteCloser, v any) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func writeSegments(w io.WriteCloser, segs []timebin.Segment) error {
	if err := parser.WriteSegments(w, segs); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
