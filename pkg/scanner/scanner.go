package scanner

import (
	"cmp"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yleoer/tbseg/pkg/dataset"
	"github.com/yleoer/tbseg/pkg/util"
)

// DatasetScanner 负责扫描数据集目录，把注释文件和时间窗文件按 stem 配对
type DatasetScanner struct {
	logger logrus.FieldLogger
}

// NewDatasetScanner 创建一个新的 DatasetScanner 实例
func NewDatasetScanner(logger logrus.FieldLogger) *DatasetScanner {
	return &DatasetScanner{logger: logger}
}

type pairKey struct {
	dir, stem string
}

type pairState struct {
	annot, timebins bool
}

// ScanDataset 递归扫描数据集根目录，返回按路径排序的完整文件对
// 只有一半的文件对会被记录警告并跳过
func (s *DatasetScanner) ScanDataset(rootPath string) ([]*dataset.Item, error) {
	s.logger.Infof("Searching for annotation/timebin pairs in %s...", rootPath)
	pairs := make(map[pairKey]*pairState)
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !util.IsRelevantDatasetFile(path) {
			return nil
		}
		key := pairKey{dir: filepath.Dir(path), stem: util.Stem(path)}
		st, ok := pairs[key]
		if !ok {
			st = &pairState{}
			pairs[key] = st
		}
		if strings.HasSuffix(d.Name(), util.AnnotSuffix) {
			st.annot = true
		} else {
			st.timebins = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := make([]*dataset.Item, 0, len(pairs))
	for key, st := range pairs {
		if !st.annot || !st.timebins {
			s.logger.WithField("file", key.stem).Warnf("Incomplete pair in %s (annotation=%v, timebins=%v). Skipping.", key.dir, st.annot, st.timebins)
			continue
		}
		item := dataset.NewItem(key.dir, key.stem)
		item.ModTime = latestModTime(item)
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b *dataset.Item) int {
		return cmp.Compare(a.AnnotPath, b.AnnotPath)
	})
	s.logger.Infof("  -> Found %d complete pairs.", len(items))
	return items, nil
}

// ItemFor 返回某个输入文件所属的文件对；另一半还不存在时返回 false
func (s *DatasetScanner) ItemFor(path string) (*dataset.Item, bool) {
	if !util.IsRelevantDatasetFile(path) {
		return nil, false
	}
	item := dataset.NewItem(filepath.Dir(path), util.Stem(path))
	for _, p := range []string{item.AnnotPath, item.TimebinsPath} {
		if info, err := os.Stat(p); err != nil || info.IsDir() {
			return nil, false
		}
	}
	item.ModTime = latestModTime(item)
	return item, true
}

func latestModTime(item *dataset.Item) time.Time {
	var latest time.Time
	for _, p := range []string{item.AnnotPath, item.TimebinsPath} {
		if info, err := os.Stat(p); err == nil && info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest
}
