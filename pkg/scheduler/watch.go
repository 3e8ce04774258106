package scheduler

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yleoer/tbseg/pkg/dataset"
	"github.com/yleoer/tbseg/pkg/timebin"
	"github.com/yleoer/tbseg/pkg/util"
)

// DirWatcher 是 fsnotify.Watcher 中调度器用到的部分
type DirWatcher interface {
	Add(name string) error
}

// AddRecursive 把 root 及其所有子目录加入监听
func AddRecursive(w DirWatcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// HandleEvent 处理一个文件系统事件：新目录加入监听，输入文件的变化触发延迟处理
func (ts *TaskScheduler) HandleEvent(ctx context.Context, w DirWatcher, event fsnotify.Event) {
	ts.logger.Debugf("Watcher event: %s, on %s", event.Op.String(), event.Name)
	if event.Has(fsnotify.Create) && util.IsDirectory(event.Name) {
		ts.logger.Infof("  -> New directory created: %s. Watching it.", event.Name)
		if err := AddRecursive(w, event.Name); err != nil {
			ts.logger.Errorf("Error adding %s to watcher: %v", event.Name, err)
		}
		// 目录可能在加入监听前就已经有文件
		entries, err := os.ReadDir(event.Name)
		if err != nil {
			return
		}
		for _, e := range entries {
			if !e.IsDir() && util.IsRelevantDatasetFile(e.Name()) {
				ts.TriggerScan(ctx, filepath.Join(event.Name, e.Name()))
			}
		}
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	if !util.IsRelevantDatasetFile(event.Name) {
		return
	}
	ts.TriggerScan(ctx, event.Name)
}

// TriggerScan 将一个输入文件所属的文件对添加到延迟处理队列
func (ts *TaskScheduler) TriggerScan(ctx context.Context, path string) {
	item, ok := ts.scanner.ItemFor(path)
	if !ok {
		ts.logger.Debugf("  -> %s has no complete annotation/timebin pair yet.", path)
		return
	}
	key := item.Key()

	ts.pendingScansMutex.Lock()
	defer ts.pendingScansMutex.Unlock()
	// 如果这个文件对已经有一个待定的任务，就重置计时器
	if timer, ok := ts.pendingScans[key]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(ts.cfg.StabilityCheckInterval, func() {
		ts.performScan(ctx, item)
		// 处理期间可能已经重新调度，只移除自己的计时器
		ts.pendingScansMutex.Lock()
		if ts.pendingScans[key] == timer {
			delete(ts.pendingScans, key)
		}
		ts.pendingScansMutex.Unlock()
	})
	ts.pendingScans[key] = timer
	ts.logger.Debugf("Scheduled processing of %s in %v", item.Stem, ts.cfg.StabilityCheckInterval)
}

// StopPending 取消所有尚未开始的延迟任务
func (ts *TaskScheduler) StopPending() {
	ts.pendingScansMutex.Lock()
	defer ts.pendingScansMutex.Unlock()
	for key, timer := range ts.pendingScans {
		timer.Stop()
		delete(ts.pendingScans, key)
	}
}

func (ts *TaskScheduler) performScan(ctx context.Context, item *dataset.Item) {
	ts.scanMutex.Lock()
	defer ts.scanMutex.Unlock()
	if ctx.Err() != nil {
		return
	}
	log := ts.logger.WithField("file", item.Stem)
	log.Info("-> Processing changed pair")
	if !ts.waitForFilesStability(ctx, item) {
		if ctx.Err() == nil {
			log.Info("  -> Files are still changing. Rescheduling.")
			ts.TriggerScan(ctx, item.AnnotPath)
		}
		return
	}
	current, ok := ts.scanner.ItemFor(item.AnnotPath)
	if !ok {
		log.Info("  -> Pair disappeared before processing. Skipping.")
		return
	}
	processed, err := ts.store.IsFileProcessed(current.Key(), current.ModTime)
	if err != nil {
		log.Errorf("Error checking processed status: %v", err)
	}
	if processed {
		log.Info("  -> Already processed (after stability check). Skipping.")
		return
	}
	ts.processOne(ctx, current)
}

// processOne 用已加载的映射和标准时长处理一个文件对
// watch 模式下无法中止，不一致的时长和未知标签都只记录并跳过
func (ts *TaskScheduler) processOne(ctx context.Context, item *dataset.Item) {
	ts.stateMu.Lock()
	m := ts.labelMap
	ts.stateMu.Unlock()
	if m == nil {
		ts.logger.Info("  -> No label map loaded yet. Running a full batch.")
		if _, err := ts.runBatch(ctx); err != nil {
			ts.logger.Errorf("Batch failed: %v", err)
		}
		return
	}

	f, err := ts.parser.ParseItem(item)
	if err != nil {
		ts.fileFailed(ctx, item.Stem, err)
		return
	}
	if err := unknownLabels(f, m); err != nil {
		if !ts.cfg.SkipUnknownLabels {
			ts.logger.WithField("file", item.Stem).Errorf("File has labels outside the label map (SKIP_UNKNOWN_LABELS=false): %v", err)
			ts.metrics.RecordFileError(ctx, reasonOf(err))
			return
		}
		ts.logger.WithField("file", item.Stem).Warnf("Skipping file: %v", err)
		ts.metrics.RecordFileError(ctx, reasonOf(err))
		return
	}

	acc, err := ts.seedCanonical()
	if err != nil {
		ts.fileFailed(ctx, item.Stem, err)
		return
	}
	files, acc, failed, err := ts.foldDurations(ctx, []*dataset.File{f}, acc)
	if err != nil {
		if errors.Is(err, timebin.ErrInconsistentDuration) {
			ts.logger.WithField("file", item.Stem).Errorf("Rejecting file: %v", err)
		} else {
			ts.fileFailed(ctx, item.Stem, err)
		}
		return
	}
	if failed > 0 {
		return
	}
	ts.setState(m, acc)
	dur, _ := acc.Value()
	if err := ts.encodeOne(ctx, files[0], m, dur); err != nil {
		ts.fileFailed(ctx, item.Stem, err)
	}
}

// waitForFilesStability 检查文件对是否稳定
func (ts *TaskScheduler) waitForFilesStability(ctx context.Context, item *dataset.Item) bool {
	log := ts.logger.WithField("file", item.Stem)
	log.Debugf("  -> Waiting for files to stabilize for %v...", ts.cfg.StabilityQuietDuration)
	paths := []string{item.AnnotPath, item.TimebinsPath}
	previousFileStates := make(map[string]fileInfo)
	fileQuietTimes := make(map[string]time.Time)
	startOverallWait := time.Now()
	for time.Since(startOverallWait) < ts.cfg.StabilityMaxWait {
		currentCheckTime := time.Now()
		allQuiet := true
		currentFileStates := make(map[string]fileInfo)
		for _, filePath := range paths {
			info, err := os.Stat(filePath)
			if err != nil {
				if !os.IsNotExist(err) {
					log.Errorf("Error getting file info for %s: %v", filePath, err)
				}
				allQuiet = false
				continue
			}
			cur := fileInfo{Size: info.Size(), ModTime: info.ModTime()}
			currentFileStates[filePath] = cur
			prev, exists := previousFileStates[filePath]
			if !exists || prev.Size != cur.Size || !prev.ModTime.Equal(cur.ModTime) {
				fileQuietTimes[filePath] = currentCheckTime
				allQuiet = false
			} else if currentCheckTime.Sub(fileQuietTimes[filePath]) < ts.cfg.StabilityQuietDuration {
				allQuiet = false
			}
		}
		previousFileStates = currentFileStates
		if allQuiet {
			log.Debugf("  -> Files are stable for at least %v.", ts.cfg.StabilityQuietDuration)
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(ts.cfg.StabilityCheckInterval):
		}
	}
	log.Warnf("  -> Max wait time for stability exceeded. Files still active within %v.", ts.cfg.StabilityQuietDuration)
	return false
}

type fileInfo struct {
	Size    int64
	ModTime time.Time
}
