package labels

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind 标签符号的类型
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	default:
		return "none"
	}
}

// ParseKind 解析 "string" / "int"
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str":
		return KindString, nil
	case "int", "integer":
		return KindInt, nil
	}
	return KindNone, fmt.Errorf("%w: unknown symbol kind %q", ErrTypeKind, s)
}

// Symbol 是一个原始标签符号（字符串或整数）。零值没有类型，不能用于构建映射。
type Symbol struct {
	kind Kind
	str  string
	num  int
}

// Str 创建字符串类型的符号
func Str(s string) Symbol { return Symbol{kind: KindString, str: s} }

// Int 创建整数类型的符号
func Int(n int) Symbol { return Symbol{kind: KindInt, num: n} }

// Strs 是 Str 的批量版本，常用于由单字符组成的标签集
func Strs(ss ...string) []Symbol {
	out := make([]Symbol, len(ss))
	for i, s := range ss {
		out[i] = Str(s)
	}
	return out
}

// Ints 是 Int 的批量版本
func Ints(ns ...int) []Symbol {
	out := make([]Symbol, len(ns))
	for i, n := range ns {
		out[i] = Int(n)
	}
	return out
}

// ParseSymbol 按给定类型解析注释文件中的原始标签文本
func ParseSymbol(raw string, kind Kind) (Symbol, error) {
	switch kind {
	case KindString:
		return Str(raw), nil
	case KindInt:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Symbol{}, fmt.Errorf("%w: label %q is not an integer", ErrTypeKind, raw)
		}
		return Int(n), nil
	}
	return Symbol{}, fmt.Errorf("%w: cannot parse %q without a kind", ErrTypeKind, raw)
}

func (s Symbol) Kind() Kind { return s.kind }

// Int 返回整数值；非整数符号返回 false
func (s Symbol) Int() (int, bool) {
	if s.kind != KindInt {
		return 0, false
	}
	return s.num, true
}

func (s Symbol) String() string {
	switch s.kind {
	case KindString:
		return s.str
	case KindInt:
		return strconv.Itoa(s.num)
	}
	return "<none>"
}
