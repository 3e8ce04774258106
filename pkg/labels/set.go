package labels

import (
	"cmp"
	"slices"
	"strings"
)

// Set 是标签符号的集合
type Set map[Symbol]struct{}

// ToSet 返回多个文件中实际出现过的标签的并集，用于和配置的标签集互相校验
func ToSet(seqs [][]Symbol) Set {
	set := make(Set)
	for _, seq := range seqs {
		for _, s := range seq {
			set[s] = struct{}{}
		}
	}
	return set
}

func (s Set) Contains(sym Symbol) bool {
	_, ok := s[sym]
	return ok
}

// Diff 返回在 s 中但不在 other 中的符号，已排序
func (s Set) Diff(other Set) []Symbol {
	var out []Symbol
	for sym := range s {
		if !other.Contains(sym) {
			out = append(out, sym)
		}
	}
	sortSymbols(out)
	return out
}

// Sorted 返回排序后的符号：字符串按字节序，整数按数值
func (s Set) Sorted() []Symbol {
	out := make([]Symbol, 0, len(s))
	for sym := range s {
		out = append(out, sym)
	}
	sortSymbols(out)
	return out
}

func sortSymbols(syms []Symbol) {
	slices.SortFunc(syms, func(a, b Symbol) int {
		if a.kind != b.kind {
			return cmp.Compare(a.kind, b.kind)
		}
		if a.kind == KindInt {
			return cmp.Compare(a.num, b.num)
		}
		return strings.Compare(a.str, b.str)
	})
}
