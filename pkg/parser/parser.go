// Package parser 读取数据集的注释 CSV 与时间窗文件，并写出解码后的片段 CSV
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yleoer/tbseg/pkg/converter"
	"github.com/yleoer/tbseg/pkg/dataset"
	"github.com/yleoer/tbseg/pkg/labels"
	"github.com/yleoer/tbseg/pkg/timebin"
	"github.com/yleoer/tbseg/pkg/util"
)

var ErrMalformed = errors.New("parser: malformed input")

// 注释文件的列名
const (
	colLabel  = "label"
	colOnset  = "onset_s"
	colOffset = "offset_s"
)

// Parser 负责把一个 dataset.Item 解析为 dataset.File
type Parser struct {
	normalizer converter.LabelNormalizer
	kind       labels.Kind
	logger     logrus.FieldLogger
}

// NewParser 创建一个新的 Parser 实例，kind 决定标签按字符串还是整数解析
func NewParser(n converter.LabelNormalizer, kind labels.Kind, logger logrus.FieldLogger) *Parser {
	return &Parser{normalizer: n, kind: kind, logger: logger}
}

// Kind 返回解析标签所用的类型
func (p *Parser) Kind() labels.Kind { return p.kind }

// ParseItem 读取并解析一对输入文件
func (p *Parser) ParseItem(item *dataset.Item) (*dataset.File, error) {
	segs, err := p.ParseAnnotations(item.AnnotPath)
	if err != nil {
		return nil, err
	}
	centers, err := p.ParseTimebins(item.TimebinsPath)
	if err != nil {
		return nil, err
	}
	p.logger.WithField("file", item.Stem).Debugf("  -> Parsed %d segments and %d time bins.", len(segs), len(centers))
	return &dataset.File{Item: item, Segments: segs, Centers: centers}, nil
}

// ParseAnnotations 读取注释文件，自动处理 UTF-8 (含 BOM) 和 GBK 编码
func (p *Parser) ParseAnnotations(path string) ([]timebin.Segment, error) {
	content, err := util.ReadTextFileContent(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read annotation file %s: %w", path, err)
	}
	segs, err := p.ReadAnnotations(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return segs, nil
}

// ReadAnnotations 从已解码为 UTF-8 的内容中读取片段
func (p *Parser) ReadAnnotations(r io.Reader) ([]timebin.Segment, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	li, oi, fi, err := columnIndexes(header)
	if err != nil {
		return nil, err
	}
	need := max(li, oi, fi) + 1

	var segs []timebin.Segment
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < need {
			return nil, fmt.Errorf("%w: line %d has %d fields, want at least %d", ErrMalformed, line, len(rec), need)
		}
		raw := p.normalizer.Normalize(rec[li])
		if raw == "" {
			return nil, fmt.Errorf("%w: line %d has an empty label", ErrMalformed, line)
		}
		sym, err := labels.ParseSymbol(raw, p.kind)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		onset, err := parseSeconds(rec[oi])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d onset: %v", ErrMalformed, line, err)
		}
		offset, err := parseSeconds(rec[fi])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d offset: %v", ErrMalformed, line, err)
		}
		segs = append(segs, timebin.Segment{Label: sym, Onset: onset, Offset: offset})
	}
	return segs, nil
}

func columnIndexes(header []string) (label, onset, offset int, err error) {
	label, onset, offset = -1, -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case colLabel:
			label = i
		case colOnset:
			onset = i
		case colOffset:
			offset = i
		}
	}
	if label < 0 || onset < 0 || offset < 0 {
		return 0, 0, 0, fmt.Errorf("%w: header %q must name %s, %s and %s", ErrMalformed, header, colLabel, colOnset, colOffset)
	}
	return label, onset, offset, nil
}

// parseSeconds 只接受有限的数值，NaN 和 Inf 视为损坏的数据
func parseSeconds(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}

// ParseTimebins 读取时间窗中心文件，数值以空白分隔
func (p *Parser) ParseTimebins(path string) ([]float64, error) {
	content, err := util.ReadTextFileContent(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timebins file %s: %w", path, err)
	}
	centers, err := ReadTimebins(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return centers, nil
}

// ReadTimebins 解析以空白分隔的时间窗中心
func ReadTimebins(content string) ([]float64, error) {
	var centers []float64
	line := 0
	for l := range strings.Lines(content) {
		line++
		for _, f := range strings.Fields(l) {
			v, err := parseSeconds(f)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d value %d: %v", ErrMalformed, line, len(centers), err)
			}
			centers = append(centers, v)
		}
	}
	return centers, nil
}

// WriteSegments 以注释文件相同的格式写出片段
func WriteSegments(w io.Writer, segs []timebin.Segment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{colLabel, colOnset, colOffset}); err != nil {
		return err
	}
	for _, s := range segs {
		rec := []string{
			s.Label.String(),
			strconv.FormatFloat(s.Onset, 'f', -1, 64),
			strconv.FormatFloat(s.Offset, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
