package converter

import (
	"fmt"

	"github.com/liuzl/gocc"
	"github.com/sirupsen/logrus"
)

// openCCConverter 把繁体中文标签转换为简体，用于合并不同标注者的同义标签
type openCCConverter struct {
	converter *gocc.OpenCC
	logger    logrus.FieldLogger
}

// NewOpenCCConverter 初始化并返回一个 OpenCC 转换器实例
func NewOpenCCConverter(logger logrus.FieldLogger) (LabelNormalizer, error) {
	// t2s 代表 Traditional Chinese to Simplified Chinese
	converter, err := gocc.New("t2s")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenCC converter: %w", err)
	}
	logger.Info("OpenCC converter (t2s) initialized.")
	return &openCCConverter{converter: converter, logger: logger}, nil
}

// Normalize 将繁体中文转换为简体，失败时返回原文
func (c *openCCConverter) Normalize(label string) string {
	out, err := c.converter.Convert(label)
	if err != nil {
		c.logger.Warnf("Failed to convert label %q from Traditional to Simplified: %v", label, err)
		return label
	}
	return out
}

// NewLabelNormalizer 返回数据集使用的归一化器：总是做 Unicode 归一化，t2s 为 true 时再做繁简转换
func NewLabelNormalizer(t2s bool, logger logrus.FieldLogger) (LabelNormalizer, error) {
	if !t2s {
		return Unicode(), nil
	}
	cc, err := NewOpenCCConverter(logger)
	if err != nil {
		return nil, err
	}
	return chain{Unicode(), cc}, nil
}
