package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/yleoer/tbseg/pkg/labels"
)

type Config struct {
	DatasetDir             string        // 数据集目录，也是 watch 模式的监听目录
	OutputDir              string        // 标签向量和 labelmap.yaml 的输出目录
	DataDir                string        // SQLite数据库文件存放目录
	DBFileName             string        // SQLite数据库文件名
	DBPath                 string        // 完整的数据库文件路径
	MapPath                string        // 完整的 labelmap.yaml 路径
	Labelset               string        // 标签集合，例如 "iabcdef" 或 "1-3,5"；为空时使用观察到的标签
	LabelsAreInt           bool          // 标签按整数解析
	MapUnlabeled           bool          // 是否为未标注时间窗分配代码
	UnlabeledPosition      string        // first 或 last
	LabelBase              int           // 第一个代码，0 或 1
	LabelT2S               bool          // 标签做繁简转换
	SkipUnknownLabels      bool          // 跳过含有标签集合之外标签的文件，否则中止
	Workers                int           // 并发处理文件数
	StabilityCheckInterval time.Duration // 每次检查的间隔
	StabilityQuietDuration time.Duration // 文件在多长时间内没有变化才算稳定
	StabilityMaxWait       time.Duration // 最长等待文件稳定的时间
	MetricsAddr            string        // /metrics 监听地址，为空则不启动
	LogLevel               string
}

const (
	datasetDir = "/app/dataset"
	outputDir  = "/app/output"
	dataDir    = "/app/data"

	dbFileName   = "tbseg.db"
	mapFileName  = "labelmap.yaml"
	workers      = 4
	unlabeledPos = "first"

	// 文件稳定性检查相关参数
	stabilityCheckInterval = 5 * time.Second  // 每次检查的间隔
	stabilityQuietDuration = 10 * time.Second // 文件在多长时间内没有变化才算稳定
	stabilityMaxWait       = 1 * time.Hour    // 最长等待文件稳定的时间
)

// SetDefaults 在 viper 上注册所有配置项的默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("DATASET_DIR", datasetDir)
	v.SetDefault("OUTPUT_DIR", outputDir)
	v.SetDefault("DATA_DIR", dataDir)
	v.SetDefault("DB_FILE_NAME", dbFileName)
	v.SetDefault("LABELSET", "")
	v.SetDefault("LABELS_ARE_INT", false)
	v.SetDefault("MAP_UNLABELED", true)
	v.SetDefault("UNLABELED_POSITION", unlabeledPos)
	v.SetDefault("LABEL_BASE", 0)
	v.SetDefault("LABEL_T2S", false)
	v.SetDefault("SKIP_UNKNOWN_LABELS", true)
	v.SetDefault("WORKERS", workers)
	v.SetDefault("STABILITY_CHECK_INTERVAL", stabilityCheckInterval.String())
	v.SetDefault("STABILITY_QUIET_DURATION", stabilityQuietDuration.String())
	v.SetDefault("STABILITY_MAX_WAIT", stabilityMaxWait.String())
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
}

// LoadConfig 从 .env 文件、环境变量、命令行参数或默认值加载配置
func LoadConfig(v *viper.Viper) (*Config, error) {
	// 尝试加载 .env 文件
	_ = godotenv.Load()
	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		DatasetDir:             v.GetString("DATASET_DIR"),
		OutputDir:              v.GetString("OUTPUT_DIR"),
		DataDir:                v.GetString("DATA_DIR"),
		DBFileName:             v.GetString("DB_FILE_NAME"),
		Labelset:               v.GetString("LABELSET"),
		LabelsAreInt:           v.GetBool("LABELS_ARE_INT"),
		MapUnlabeled:           v.GetBool("MAP_UNLABELED"),
		UnlabeledPosition:      strings.ToLower(strings.TrimSpace(v.GetString("UNLABELED_POSITION"))),
		LabelBase:              v.GetInt("LABEL_BASE"),
		LabelT2S:               v.GetBool("LABEL_T2S"),
		SkipUnknownLabels:      v.GetBool("SKIP_UNKNOWN_LABELS"),
		Workers:                v.GetInt("WORKERS"),
		StabilityCheckInterval: parseDurationOrDefault(v.GetString("STABILITY_CHECK_INTERVAL"), stabilityCheckInterval),
		StabilityQuietDuration: parseDurationOrDefault(v.GetString("STABILITY_QUIET_DURATION"), stabilityQuietDuration),
		StabilityMaxWait:       parseDurationOrDefault(v.GetString("STABILITY_MAX_WAIT"), stabilityMaxWait),
		MetricsAddr:            v.GetString("METRICS_ADDR"),
		LogLevel:               v.GetString("LOG_LEVEL"),
	}

	if cfg.UnlabeledPosition != "first" && cfg.UnlabeledPosition != "last" {
		return nil, fmt.Errorf("UNLABELED_POSITION must be first or last, got %q", cfg.UnlabeledPosition)
	}
	if cfg.LabelBase != 0 && cfg.LabelBase != 1 {
		return nil, fmt.Errorf("LABEL_BASE must be 0 or 1, got %d", cfg.LabelBase)
	}
	if cfg.Workers < 1 {
		logrus.Warnf("WORKERS=%d is not positive, using default %d", cfg.Workers, workers)
		cfg.Workers = workers
	}
	if cfg.Labelset != "" {
		syms, err := labels.ParseLabelset(cfg.Labelset, cfg.LabelsAreInt)
		if err != nil {
			return nil, fmt.Errorf("invalid LABELSET: %w", err)
		}
		if syms[0].Kind() != cfg.LabelKind() {
			return nil, fmt.Errorf("LABELSET %q has %s labels but LABELS_ARE_INT=%v", cfg.Labelset, syms[0].Kind(), cfg.LabelsAreInt)
		}
	}

	cfg.DBPath = filepath.Join(cfg.DataDir, cfg.DBFileName)
	cfg.MapPath = filepath.Join(cfg.OutputDir, mapFileName)
	// 确认目录存在
	if err := os.MkdirAll(cfg.DatasetDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory %s: %w", cfg.DatasetDir, err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", cfg.DataDir, err)
	}
	logrus.Debugf("Configuration loaded: DatasetDir=%s, OutputDir=%s, DataDir=%s, DBPath=%s",
		cfg.DatasetDir, cfg.OutputDir, cfg.DataDir, cfg.DBPath)
	return cfg, nil
}

// LabelKind 返回注释文件中标签的解析类型
func (c *Config) LabelKind() labels.Kind {
	if c.LabelsAreInt {
		return labels.KindInt
	}
	return labels.KindString
}

// MapOptions 返回构建标签映射的选项
func (c *Config) MapOptions() []labels.Option {
	opts := []labels.Option{labels.WithBase(c.LabelBase)}
	if c.UnlabeledPosition == "last" {
		opts = append(opts, labels.WithUnlabeledLast())
	}
	return opts
}

func parseDurationOrDefault(s string, defaultValue time.Duration) time.Duration {
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		logrus.Warnf("Could not parse duration '%s', using default '%v'. Error: %v", s, defaultValue, err)
		return defaultValue
	}
	return d
}
