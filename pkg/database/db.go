package database

import "time"

// FileRecord 描述一个已成功编码的数据集文件
type FileRecord struct {
	Path         string    // 注释文件路径，作为唯一键
	ModTime      time.Time // 处理时输入文件的修改时间
	TimebinDur   float64
	NumTimebins  int
	HasUnlabeled bool
	OutputPath   string
}

// FileStore 定义文件处理状态与数据集级元数据的存储接口
type FileStore interface {
	AddProcessedFile(rec FileRecord) error                               // 将文件标记为已处理
	IsFileProcessed(path string, modTime time.Time) (bool, error)        // 检查文件在该修改时间下是否已处理
	CanonicalDuration() (dur float64, source string, ok bool, err error) // 读取数据集的时间窗时长
	SetCanonicalDuration(dur float64, source string) error               // 记录数据集的时间窗时长
	Close() error                                                        // 关闭数据库连接
}
