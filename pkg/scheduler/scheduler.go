package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yleoer/tbseg/pkg/config"
	"github.com/yleoer/tbseg/pkg/database"
	"github.com/yleoer/tbseg/pkg/dataset"
	"github.com/yleoer/tbseg/pkg/labels"
	"github.com/yleoer/tbseg/pkg/observe"
	"github.com/yleoer/tbseg/pkg/parser"
	"github.com/yleoer/tbseg/pkg/processor"
	"github.com/yleoer/tbseg/pkg/scanner"
	"github.com/yleoer/tbseg/pkg/timebin"
)

// TaskScheduler 负责调度数据集扫描、标签映射、时长校验和编码任务
type TaskScheduler struct {
	cfg       *config.Config
	store     database.FileStore
	scanner   *scanner.DatasetScanner
	parser    *parser.Parser
	processor *processor.VectorProcessor
	metrics   *observe.Metrics
	logger    logrus.FieldLogger

	stateMu   sync.Mutex // 保护 labelMap 和 canonical
	labelMap  *labels.Map
	canonical timebin.Canonical

	scanMutex         sync.Mutex // 批处理和单文件处理互斥
	pendingScans      map[string]*time.Timer
	pendingScansMutex sync.Mutex // 保护 pendingScans map
}

// BatchResult 汇总一次批处理的结果
type BatchResult struct {
	Found      int // 完整的文件对
	Unchanged  int // 已处理且未修改
	Processed  int
	Skipped    int // 含有标签集合之外标签而被跳过
	Failed     int
	TimebinDur float64
}

// NewTaskScheduler 创建一个新的 TaskScheduler 实例
func NewTaskScheduler(
	cfg *config.Config,
	store database.FileStore,
	datasetScanner *scanner.DatasetScanner,
	p *parser.Parser,
	vectorProcessor *processor.VectorProcessor,
	metrics *observe.Metrics,
	logger logrus.FieldLogger,
) *TaskScheduler {
	return &TaskScheduler{
		cfg:          cfg,
		store:        store,
		scanner:      datasetScanner,
		parser:       p,
		processor:    vectorProcessor,
		metrics:      metrics,
		logger:       logger,
		pendingScans: make(map[string]*time.Timer),
	}
}

// LabelMap 返回当前使用的标签映射，尚未加载时为 nil
func (ts *TaskScheduler) LabelMap() *labels.Map {
	ts.stateMu.Lock()
	defer ts.stateMu.Unlock()
	return ts.labelMap
}

// RunBatch 扫描整个数据集并编码所有未处理的文件
//
// 时长不一致会中止整个批处理；标签集合之外的标签按 SKIP_UNKNOWN_LABELS 跳过文件或中止；
// 其他单文件错误只记录日志和指标，文件不会被标记为已处理。
func (ts *TaskScheduler) RunBatch(ctx context.Context) (*BatchResult, error) {
	ts.scanMutex.Lock()
	defer ts.scanMutex.Unlock()
	return ts.runBatch(ctx)
}

func (ts *TaskScheduler) runBatch(ctx context.Context) (*BatchResult, error) {
	ts.logger.Infof("Performing batch scan of dataset directory %s...", ts.cfg.DatasetDir)
	items, err := ts.scanner.ScanDataset(ts.cfg.DatasetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan dataset directory %s: %w", ts.cfg.DatasetDir, err)
	}
	res := &BatchResult{Found: len(items)}

	m, err := ts.loadMap()
	if err != nil {
		return nil, err
	}
	pending := items
	if m != nil {
		// 映射已存在时才能信任之前的处理记录，否则代码可能已经变化
		pending = ts.pendingItems(items)
	} else {
		ts.logger.Infof("No label map at %s; every file will be (re)processed.", ts.cfg.MapPath)
	}
	res.Unchanged = len(items) - len(pending)

	files, failed, err := ts.parseAll(ctx, pending)
	if err != nil {
		return nil, err
	}
	res.Failed += failed

	if m == nil {
		if len(files) == 0 && ts.cfg.Labelset == "" {
			ts.logger.Info("No annotated files yet; the label map will be built once some arrive.")
			return res, nil
		}
		if m, err = ts.buildMap(files); err != nil {
			return nil, err
		}
	}
	ts.checkLabelset(m, files)

	files, skipped, err := ts.filterUnknown(ctx, files, m)
	if err != nil {
		return nil, err
	}
	res.Skipped = skipped

	acc, err := ts.seedCanonical()
	if err != nil {
		return nil, err
	}
	files, acc, failed, err = ts.foldDurations(ctx, files, acc)
	if err != nil {
		return nil, err
	}
	res.Failed += failed
	ts.setState(m, acc)

	dur, ok := acc.Value()
	if !ok {
		ts.logger.Info("No files to encode.")
		return res, nil
	}
	res.TimebinDur = dur

	processed, failed, err := ts.encodeAll(ctx, files, m, dur)
	if err != nil {
		return nil, err
	}
	res.Processed, res.Failed = processed, res.Failed+failed
	ts.logger.Infof("Batch completed: %d found, %d unchanged, %d processed, %d skipped, %d failed (time bin %gs).",
		res.Found, res.Unchanged, res.Processed, res.Skipped, res.Failed, res.TimebinDur)
	return res, nil
}

func (ts *TaskScheduler) pendingItems(items []*dataset.Item) []*dataset.Item {
	var pending []*dataset.Item
	for _, item := range items {
		processed, err := ts.store.IsFileProcessed(item.Key(), item.ModTime)
		if err != nil {
			ts.logger.Errorf("Error checking processed status for %s: %v", item.Key(), err)
		}
		if processed {
			ts.logger.WithField("file", item.Stem).Debug("  -> Already processed. Skipping.")
			continue
		}
		pending = append(pending, item)
	}
	return pending
}

// parseAll 并发解析文件，结果保持输入顺序；解析失败的文件被丢弃并计数
func (ts *TaskScheduler) parseAll(ctx context.Context, items []*dataset.Item) ([]*dataset.File, int, error) {
	results := make([]*dataset.File, len(items))
	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ts.cfg.Workers)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := ts.parser.ParseItem(item)
			if err != nil {
				ts.fileFailed(gctx, item.Stem, err)
				failed.Add(1)
				return nil
			}
			results[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	files := make([]*dataset.File, 0, len(results))
	for _, f := range results {
		if f != nil {
			files = append(files, f)
		}
	}
	return files, int(failed.Load()), nil
}

func (ts *TaskScheduler) loadMap() (*labels.Map, error) {
	m, err := labels.ReadMapFile(ts.cfg.MapPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if m.Kind() != ts.parser.Kind() {
		return nil, fmt.Errorf("%w: %s holds %s labels, annotations are parsed as %s",
			labels.ErrTypeKind, ts.cfg.MapPath, m.Kind(), ts.parser.Kind())
	}
	ts.logger.Infof("Loaded label map with %d classes from %s.", m.Len(), ts.cfg.MapPath)
	return m, nil
}

// PreviewLabelMap 返回 RunBatch 会使用的标签映射，不写出任何文件
func (ts *TaskScheduler) PreviewLabelMap(ctx context.Context) (*labels.Map, error) {
	ts.scanMutex.Lock()
	defer ts.scanMutex.Unlock()
	m, err := ts.loadMap()
	if err != nil || m != nil {
		return m, err
	}
	items, err := ts.scanner.ScanDataset(ts.cfg.DatasetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan dataset directory %s: %w", ts.cfg.DatasetDir, err)
	}
	files, _, err := ts.parseAll(ctx, items)
	if err != nil {
		return nil, err
	}
	return ts.newMap(files)
}

// buildMap 构建映射并写入 labelmap.yaml
func (ts *TaskScheduler) buildMap(files []*dataset.File) (*labels.Map, error) {
	m, err := ts.newMap(files)
	if err != nil {
		return nil, err
	}
	if err := labels.WriteMapFile(ts.cfg.MapPath, m); err != nil {
		return nil, err
	}
	ts.logger.Infof("Built label map with %d classes, written to %s.", m.Len(), ts.cfg.MapPath)
	return m, nil
}

// newMap 从配置的标签集合构建映射，没有配置时使用数据集中观察到的所有标签
func (ts *TaskScheduler) newMap(files []*dataset.File) (*labels.Map, error) {
	var alphabet []labels.Symbol
	if ts.cfg.Labelset != "" {
		syms, err := labels.ParseLabelset(ts.cfg.Labelset, ts.cfg.LabelsAreInt)
		if err != nil {
			return nil, err
		}
		alphabet = syms
	} else {
		alphabet = observedLabels(files).Sorted()
		if len(alphabet) == 0 {
			return nil, fmt.Errorf("cannot build label map: %w (no LABELSET configured and no labels in dataset)", labels.ErrEmptyAlphabet)
		}
	}
	return labels.BuildMap(alphabet, ts.cfg.MapUnlabeled, ts.cfg.MapOptions()...)
}

func observedLabels(files []*dataset.File) labels.Set {
	seqs := make([][]labels.Symbol, len(files))
	for i, f := range files {
		seqs[i] = f.Labels()
	}
	return labels.ToSet(seqs)
}

// checkLabelset 比较映射与观察到的标签，只记录日志
func (ts *TaskScheduler) checkLabelset(m *labels.Map, files []*dataset.File) {
	observed := observedLabels(files)
	known := labels.ToSet([][]labels.Symbol{m.Symbols()})
	if extra := observed.Diff(known); len(extra) > 0 {
		ts.logger.Warnf("Labels found in annotations but not in the label map: %v", extra)
	}
	if unused := known.Diff(observed); len(unused) > 0 && len(files) > 0 {
		ts.logger.Infof("Labels in the label map never observed in this batch: %v", unused)
	}
}

// filterUnknown 去掉含有映射之外标签的文件；SKIP_UNKNOWN_LABELS 为 false 时中止
func (ts *TaskScheduler) filterUnknown(ctx context.Context, files []*dataset.File, m *labels.Map) ([]*dataset.File, int, error) {
	kept := make([]*dataset.File, 0, len(files))
	skipped := 0
	for _, f := range files {
		err := unknownLabels(f, m)
		if err == nil {
			kept = append(kept, f)
			continue
		}
		if !ts.cfg.SkipUnknownLabels {
			ts.metrics.RecordFileError(ctx, reasonOf(err))
			return nil, 0, err
		}
		ts.logger.WithField("file", f.Item.Stem).Warnf("Skipping file: %v", err)
		ts.metrics.RecordFileError(ctx, reasonOf(err))
		skipped++
	}
	return kept, skipped, nil
}

func unknownLabels(f *dataset.File, m *labels.Map) error {
	var unknown []labels.Symbol
	for _, sym := range labels.ToSet([][]labels.Symbol{f.Labels()}).Sorted() {
		if _, err := m.Code(sym); err != nil {
			unknown = append(unknown, sym)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return &timebin.FileError{File: f.Item.Stem, Err: fmt.Errorf("%w: %v", labels.ErrUnknownLabel, unknown)}
}

func (ts *TaskScheduler) seedCanonical() (timebin.Canonical, error) {
	ts.stateMu.Lock()
	acc := ts.canonical
	ts.stateMu.Unlock()
	if _, ok := acc.Value(); ok {
		return acc, nil
	}
	dur, source, ok, err := ts.store.CanonicalDuration()
	if err != nil {
		return acc, err
	}
	if ok {
		ts.logger.Infof("Resuming with canonical time bin duration %gs (from %s).", dur, source)
		return timebin.SeedCanonical(dur, source), nil
	}
	return acc, nil
}

// foldDurations 按顺序校验每个文件的时间窗时长；不一致时中止，数据不足的文件被丢弃并计数
func (ts *TaskScheduler) foldDurations(ctx context.Context, files []*dataset.File, acc timebin.Canonical) ([]*dataset.File, timebin.Canonical, int, error) {
	_, wasSet := acc.Value()
	kept := make([]*dataset.File, 0, len(files))
	failed := 0
	for _, f := range files {
		next, err := acc.Observe(f.Timebins())
		if errors.Is(err, timebin.ErrInconsistentDuration) {
			ts.metrics.RecordFileError(ctx, reasonOf(err))
			return nil, acc, 0, err
		}
		if err != nil {
			ts.fileFailed(ctx, f.Item.Stem, err)
			failed++
			continue
		}
		acc = next
		kept = append(kept, f)
	}
	if dur, ok := acc.Value(); ok && !wasSet {
		if err := ts.store.SetCanonicalDuration(dur, acc.Source()); err != nil {
			return nil, acc, 0, err
		}
	}
	return kept, acc, failed, nil
}

// encodeAll 在有界的 worker 池上编码并写出文件
func (ts *TaskScheduler) encodeAll(ctx context.Context, files []*dataset.File, m *labels.Map, dur float64) (int, int, error) {
	var processed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ts.cfg.Workers)
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := ts.encodeOne(gctx, f, m, dur); err != nil {
				ts.fileFailed(gctx, f.Item.Stem, err)
				failed.Add(1)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	return int(processed.Load()), int(failed.Load()), nil
}

func (ts *TaskScheduler) encodeOne(ctx context.Context, f *dataset.File, m *labels.Map, dur float64) error {
	rec, err := ts.processor.ProcessFile(ctx, f, m, dur)
	if err != nil {
		return err
	}
	return ts.store.AddProcessedFile(rec)
}

func (ts *TaskScheduler) setState(m *labels.Map, acc timebin.Canonical) {
	ts.stateMu.Lock()
	defer ts.stateMu.Unlock()
	ts.labelMap, ts.canonical = m, acc
}

func (ts *TaskScheduler) fileFailed(ctx context.Context, file string, err error) {
	ts.logger.WithField("file", file).Errorf("Failed to process file: %v", err)
	ts.metrics.RecordFileError(ctx, reasonOf(err))
}

// reasonOf 把错误归类为指标的 reason 属性
func reasonOf(err error) string {
	switch {
	case errors.Is(err, timebin.ErrInconsistentDuration):
		return "inconsistent_duration"
	case errors.Is(err, timebin.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, timebin.ErrOverlappingSegments):
		return "overlapping_segments"
	case errors.Is(err, timebin.ErrInvalidSegment):
		return "invalid_segment"
	case errors.Is(err, timebin.ErrUnsortedTimebins), errors.Is(err, timebin.ErrInvalidTimebins):
		return "unsorted_timebins"
	case errors.Is(err, timebin.ErrNoUnlabeledClass):
		return "no_unlabeled_class"
	case errors.Is(err, labels.ErrUnknownLabel):
		return "unknown_label"
	case errors.Is(err, labels.ErrTypeKind), errors.Is(err, parser.ErrMalformed):
		return "malformed"
	}
	return "io"
}
