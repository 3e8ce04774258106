// Package observe 提供 tbseg 的 OpenTelemetry 指标以及 Prometheus /metrics 出口
//
// 测试应使用 NewMetrics 配合自定义 MeterProvider，避免测试之间共享全局状态。
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/yleoer/tbseg"

// Metrics 持有所有指标，字段可并发使用
type Metrics struct {
	// FilesProcessed 统计成功编码的文件数
	FilesProcessed metric.Int64Counter

	// FileErrors 统计处理失败的文件数，带 attribute.String("reason", ...)
	FileErrors metric.Int64Counter

	// TimebinsEncoded 统计写出的时间窗总数
	TimebinsEncoded metric.Int64Counter

	// ProcessDuration 记录单个文件从解析到写出的耗时
	ProcessDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5,
}

// NewMetrics 用给定的 MeterProvider 创建所有指标
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FilesProcessed, err = m.Int64Counter("tbseg.files.processed",
		metric.WithDescription("Total dataset files encoded to label vectors."),
	); err != nil {
		return nil, err
	}
	if met.FileErrors, err = m.Int64Counter("tbseg.files.errors",
		metric.WithDescription("Total dataset files that failed, by reason."),
	); err != nil {
		return nil, err
	}
	if met.TimebinsEncoded, err = m.Int64Counter("tbseg.timebins.encoded",
		metric.WithDescription("Total time bins written to label vectors."),
	); err != nil {
		return nil, err
	}
	if met.ProcessDuration, err = m.Float64Histogram("tbseg.file.process.duration",
		metric.WithDescription("Latency of parsing, encoding and writing one dataset file."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics 返回基于全局 MeterProvider 的包级实例
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordFile 记录一个成功处理的文件
func (m *Metrics) RecordFile(ctx context.Context, timebins int, seconds float64) {
	m.FilesProcessed.Add(ctx, 1)
	m.TimebinsEncoded.Add(ctx, int64(timebins))
	m.ProcessDuration.Record(ctx, seconds)
}

// RecordFileError 记录一个失败的文件
func (m *Metrics) RecordFileError(ctx context.Context, reason string) {
	m.FileErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
