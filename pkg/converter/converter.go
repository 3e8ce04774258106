package converter

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// LabelNormalizer 定义标签文本归一化接口，注释文件中的原始标签在映射前都要经过它
type LabelNormalizer interface {
	Normalize(label string) string
}

// unicodeNormalizer 去掉首尾空白，做 NFC 组合并把全角字符折叠为半角
type unicodeNormalizer struct{}

func (unicodeNormalizer) Normalize(label string) string {
	return width.Fold.String(norm.NFC.String(strings.TrimSpace(label)))
}

// chain 依次应用多个归一化器
type chain []LabelNormalizer

func (c chain) Normalize(label string) string {
	for _, n := range c {
		label = n.Normalize(label)
	}
	return label
}

// Unicode 返回只做 Unicode 归一化的 LabelNormalizer
func Unicode() LabelNormalizer { return unicodeNormalizer{} }
