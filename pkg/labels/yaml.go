package labels

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// mapDoc 是 labelmap.yaml 的文件结构
type mapDoc struct {
	Kind      string     `yaml:"kind"`
	Base      int        `yaml:"base"`
	Unlabeled *int       `yaml:"unlabeled,omitempty"`
	Codes     []entryDoc `yaml:"codes"`
}

type entryDoc struct {
	Label string `yaml:"label"`
	Code  int    `yaml:"code"`
}

// MarshalYAML 实现 yaml.Marshaler
func (m *Map) MarshalYAML() (interface{}, error) {
	doc := mapDoc{Kind: m.kind.String(), Base: m.base}
	if code, ok := m.Unlabeled(); ok {
		doc.Unlabeled = &code
	}
	for _, e := range m.Entries() {
		if s, ok := e.Class.Symbol(); ok {
			doc.Codes = append(doc.Codes, entryDoc{Label: s.String(), Code: e.Code})
		}
	}
	return doc, nil
}

// UnmarshalYAML 实现 yaml.Unmarshaler，并重新校验代码唯一且连续
func (m *Map) UnmarshalYAML(value *yaml.Node) error {
	var doc mapDoc
	if err := value.Decode(&doc); err != nil {
		return err
	}
	kind, err := ParseKind(doc.Kind)
	if err != nil {
		return err
	}
	if doc.Base != 0 && doc.Base != 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidBase, doc.Base)
	}

	n := len(doc.Codes)
	if doc.Unlabeled != nil {
		n++
	}
	if n == 0 {
		return ErrEmptyAlphabet
	}
	classes := make([]Class, n)
	filled := make([]bool, n)
	place := func(code int, c Class) error {
		i := code - doc.Base
		if i < 0 || i >= n {
			return fmt.Errorf("%w: code %d outside dense range [%d, %d)", ErrInvalidMap, code, doc.Base, doc.Base+n)
		}
		if filled[i] {
			return fmt.Errorf("%w: code %d assigned twice", ErrInvalidMap, code)
		}
		classes[i], filled[i] = c, true
		return nil
	}
	if doc.Unlabeled != nil {
		if err := place(*doc.Unlabeled, Unlabeled); err != nil {
			return err
		}
	}
	for _, e := range doc.Codes {
		sym, err := ParseSymbol(e.Label, kind)
		if err != nil {
			return err
		}
		if err := place(e.Code, Labeled(sym)); err != nil {
			return err
		}
	}

	built, err := newMap(kind, doc.Base, classes)
	if err != nil {
		return err
	}
	*m = *built
	return nil
}

// ReadMapFile 从 YAML 文件加载标签映射
func ReadMapFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("labels: open %q: %w", path, err)
	}
	defer f.Close()

	m := &Map{}
	if err := yaml.NewDecoder(f).Decode(m); err != nil {
		return nil, fmt.Errorf("labels: decode %q: %w", path, err)
	}
	return m, nil
}

// WriteMapFile 把标签映射写入 YAML 文件
func WriteMapFile(path string, m *Map) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("labels: create %q: %w", path, err)
	}
	if err := encodeMap(f, m); err != nil {
		return fmt.Errorf("labels: write %q: %w", path, err)
	}
	return nil
}

// encodeMap 写出映射并关闭 w
func encodeMap(w io.WriteCloser, m *Map) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		_ = w.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
