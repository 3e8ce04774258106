// Package labels 负责标签符号与连续整数代码之间的双向映射，
// 以及与"未标注"(unlabeled) 背景类别相关的工具函数。
package labels

import (
	"fmt"
)

// Class 是一个代码所代表的类别：要么是一个标签符号，要么是未标注背景。
// 未标注类别不是一个 Symbol，因此不会与名为 "unlabeled" 的用户标签冲突。
type Class struct {
	sym       Symbol
	unlabeled bool
}

// Labeled 返回代表符号 s 的类别
func Labeled(s Symbol) Class { return Class{sym: s} }

// Unlabeled 是背景/静音类别
var Unlabeled = Class{unlabeled: true}

func (c Class) IsUnlabeled() bool { return c.unlabeled }

// Symbol 返回类别对应的符号；未标注类别返回 false
func (c Class) Symbol() (Symbol, bool) {
	if c.unlabeled {
		return Symbol{}, false
	}
	return c.sym, true
}

func (c Class) String() string {
	if c.unlabeled {
		return "unlabeled"
	}
	return c.sym.String()
}

type options struct {
	base          int
	unlabeledLast bool
}

// Option 配置 BuildMap
type Option func(*options)

// WithBase 设置第一个代码的值（0 或 1）
func WithBase(base int) Option {
	return func(o *options) { o.base = base }
}

// WithUnlabeledLast 把未标注类别放在最大的代码上，默认放在最小的代码上
func WithUnlabeledLast() Option {
	return func(o *options) { o.unlabeledLast = true }
}

// Map 是标签符号到连续整数代码的双射，构建后不可修改
type Map struct {
	kind         Kind
	base         int
	codes        map[Symbol]int
	classes      []Class // classes[code-base]
	unlabeled    int
	hasUnlabeled bool
}

// BuildMap 按字母表排序后的顺序分配连续代码。相同的字母表总是得到相同的映射。
func BuildMap(alphabet []Symbol, includeUnlabeled bool, opts ...Option) (*Map, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.base != 0 && o.base != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBase, o.base)
	}
	if len(alphabet) == 0 {
		return nil, ErrEmptyAlphabet
	}
	kind, err := kindOf(alphabet)
	if err != nil {
		return nil, err
	}

	syms := ToSet([][]Symbol{alphabet}).Sorted()
	classes := make([]Class, 0, len(syms)+1)
	if includeUnlabeled && !o.unlabeledLast {
		classes = append(classes, Unlabeled)
	}
	for _, s := range syms {
		classes = append(classes, Labeled(s))
	}
	if includeUnlabeled && o.unlabeledLast {
		classes = append(classes, Unlabeled)
	}
	return newMap(kind, o.base, classes)
}

func newMap(kind Kind, base int, classes []Class) (*Map, error) {
	m := &Map{
		kind:    kind,
		base:    base,
		codes:   make(map[Symbol]int, len(classes)),
		classes: classes,
	}
	for i, c := range classes {
		code := base + i
		if c.unlabeled {
			if m.hasUnlabeled {
				return nil, fmt.Errorf("%w: more than one unlabeled class", ErrInvalidMap)
			}
			m.unlabeled, m.hasUnlabeled = code, true
			continue
		}
		if c.sym.kind != kind {
			return nil, fmt.Errorf("%w: symbol %q is %s, map is %s", ErrTypeKind, c.sym, c.sym.kind, kind)
		}
		if prev, dup := m.codes[c.sym]; dup {
			return nil, fmt.Errorf("%w: symbol %q mapped to both %d and %d", ErrInvalidMap, c.sym, prev, code)
		}
		m.codes[c.sym] = code
	}
	return m, nil
}

func kindOf(alphabet []Symbol) (Kind, error) {
	kind := alphabet[0].kind
	for i, s := range alphabet {
		if s.kind == KindNone {
			return KindNone, fmt.Errorf("%w: symbol %d has no kind", ErrTypeKind, i)
		}
		if s.kind != kind {
			return KindNone, fmt.Errorf("%w: alphabet mixes %s and %s symbols", ErrTypeKind, kind, s.kind)
		}
	}
	return kind, nil
}

// Code 返回符号的代码
func (m *Map) Code(s Symbol) (int, error) {
	code, ok := m.codes[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, s)
	}
	return code, nil
}

// Class 是 Code 的逆映射
func (m *Map) Class(code int) (Class, error) {
	i := code - m.base
	if i < 0 || i >= len(m.classes) {
		return Class{}, fmt.Errorf("%w: %d", ErrUnknownCode, code)
	}
	return m.classes[i], nil
}

// Unlabeled 返回未标注类别的代码，映射中没有该类别时返回 false
func (m *Map) Unlabeled() (int, bool) { return m.unlabeled, m.hasUnlabeled }

func (m *Map) IsUnlabeled(code int) bool { return m.hasUnlabeled && code == m.unlabeled }

// Len 返回映射中的类别数（包括未标注类别）
func (m *Map) Len() int { return len(m.classes) }

func (m *Map) Kind() Kind { return m.kind }

func (m *Map) Base() int { return m.base }

// Symbols 按代码顺序返回所有标签符号，不包括未标注类别
func (m *Map) Symbols() []Symbol {
	out := make([]Symbol, 0, len(m.codes))
	for _, c := range m.classes {
		if s, ok := c.Symbol(); ok {
			out = append(out, s)
		}
	}
	return out
}

// Entry 是映射中的一项
type Entry struct {
	Code  int
	Class Class
}

// Entries 按代码顺序返回所有项
func (m *Map) Entries() []Entry {
	out := make([]Entry, len(m.classes))
	for i, c := range m.classes {
		out[i] = Entry{Code: m.base + i, Class: c}
	}
	return out
}
