package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/sirupsen/logrus"
)

// sqliteStore 是 FileStore 接口的 SQLite 实现
type sqliteStore struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

const createTablesSQL = `
	CREATE TABLE IF NOT EXISTS processed_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		mod_time INTEGER NOT NULL,
		timebin_dur REAL NOT NULL,
		num_timebins INTEGER NOT NULL,
		has_unlabeled INTEGER NOT NULL,
		output_path TEXT NOT NULL,
		processed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS dataset_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

const (
	metaTimebinDur    = "timebin_dur"
	metaTimebinSource = "timebin_dur_source"
)

// NewSQLiteStore 初始化 SQLite 数据库并返回 FileStore 接口实例
func NewSQLiteStore(dataSourceName string, logger logrus.FieldLogger) (FileStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// 并发 worker 共用一个连接，避免 database is locked
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	logger.Infof("SQLite database initialized at: %s", dataSourceName)
	return &sqliteStore{db: db, logger: logger}, nil
}

// Close 关闭数据库连接
func (s *sqliteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.logger.Info("SQLite database connection closed.")
		return err
	}
	return nil
}

// AddProcessedFile 将文件标记为已处理，重复处理时覆盖旧记录
func (s *sqliteStore) AddProcessedFile(rec FileRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO processed_files (path, mod_time, timebin_dur, num_timebins, has_unlabeled, output_path, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			mod_time = excluded.mod_time,
			timebin_dur = excluded.timebin_dur,
			num_timebins = excluded.num_timebins,
			has_unlabeled = excluded.has_unlabeled,
			output_path = excluded.output_path,
			processed_at = excluded.processed_at`,
		rec.Path, rec.ModTime.UnixNano(), rec.TimebinDur, rec.NumTimebins, rec.HasUnlabeled, rec.OutputPath, time.Now())
	if err != nil {
		s.logger.Errorf("Failed to add file %s to processed_files: %v", rec.Path, err)
		return fmt.Errorf("failed to add processed file %s: %w", rec.Path, err)
	}
	s.logger.WithField("file", rec.Path).Debug("File marked as processed.")
	return nil
}

// IsFileProcessed 检查文件是否已按当前修改时间处理过
func (s *sqliteStore) IsFileProcessed(path string, modTime time.Time) (bool, error) {
	var stored int64
	err := s.db.QueryRow("SELECT mod_time FROM processed_files WHERE path = ?", path).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		s.logger.Errorf("Failed to check if file %s is processed: %v", path, err)
		return false, fmt.Errorf("failed to check processed status for %s: %w", path, err)
	}
	return stored == modTime.UnixNano(), nil
}

// CanonicalDuration 读取已记录的数据集时间窗时长
func (s *sqliteStore) CanonicalDuration() (float64, string, bool, error) {
	rows, err := s.db.Query("SELECT key, value FROM dataset_meta WHERE key IN (?, ?)", metaTimebinDur, metaTimebinSource)
	if err != nil {
		return 0, "", false, fmt.Errorf("failed to read dataset metadata: %w", err)
	}
	defer rows.Close()

	var rawDur, source string
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return 0, "", false, fmt.Errorf("failed to read dataset metadata: %w", err)
		}
		switch key {
		case metaTimebinDur:
			rawDur = value
		case metaTimebinSource:
			source = value
		}
	}
	if err := rows.Err(); err != nil {
		return 0, "", false, fmt.Errorf("failed to read dataset metadata: %w", err)
	}
	if rawDur == "" {
		return 0, "", false, nil
	}
	dur, err := strconv.ParseFloat(rawDur, 64)
	if err != nil {
		return 0, "", false, fmt.Errorf("corrupt %s value %q: %w", metaTimebinDur, rawDur, err)
	}
	return dur, source, true, nil
}

// SetCanonicalDuration 记录数据集的时间窗时长及其来源文件
func (s *sqliteStore) SetCanonicalDuration(dur float64, source string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	const upsert = "INSERT INTO dataset_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value"
	if _, err := tx.Exec(upsert, metaTimebinDur, strconv.FormatFloat(dur, 'g', -1, 64)); err != nil {
		return fmt.Errorf("failed to store %s: %w", metaTimebinDur, err)
	}
	if _, err := tx.Exec(upsert, metaTimebinSource, source); err != nil {
		return fmt.Errorf("failed to store %s: %w", metaTimebinSource, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dataset metadata: %w", err)
	}
	s.logger.Infof("Canonical time bin duration %gs recorded (from %s).", dur, source)
	return nil
}
