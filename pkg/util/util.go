package util

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

const (
	AnnotSuffix    = ".annot.csv"   // 注释文件后缀
	TimebinsSuffix = ".tb.txt"      // 时间窗中心文件后缀
	VectorSuffix   = ".lbl_tb.json" // 输出的标签向量文件后缀
	SegmentsSuffix = ".segments.csv"
)

// ReadTextFileContent 读取文本文件内容，自动处理 UTF-8 (含 BOM) 和 GBK 编码
// 返回的内容保证是 UTF-8 编码的字符串。
func ReadTextFileContent(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DecodeText(data, filepath.Base(path))
}

// DecodeText 把原始字节解码为 UTF-8 字符串，name 仅用于错误信息
func DecodeText(data []byte, name string) (string, error) {
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return string(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})), nil
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	gbkReader := transform.NewReader(bytes.NewReader(data), simplifiedchinese.GBK.NewDecoder())
	decodedData, err := io.ReadAll(gbkReader)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s as GBK: %w", name, err)
	}

	return string(decodedData), nil
}

// IsDirectory 辅助函数，检查路径是否为目录
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsRelevantDatasetFile 判断文件是否为数据集中我们关心的输入文件，后缀区分大小写
func IsRelevantDatasetFile(filePath string) bool {
	name := filepath.Base(filePath)
	return strings.HasSuffix(name, AnnotSuffix) || strings.HasSuffix(name, TimebinsSuffix)
}

// Stem 去掉已知的输入/输出后缀，返回音频文件名（例如 "bird1.wav"）
func Stem(filePath string) string {
	name := filepath.Base(filePath)
	for _, suffix := range []string{AnnotSuffix, TimebinsSuffix, VectorSuffix, SegmentsSuffix} {
		if strings.HasSuffix(name, suffix) {
			return name[:len(name)-len(suffix)]
		}
	}
	return name
}
