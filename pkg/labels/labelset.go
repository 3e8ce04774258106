package labels

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLabelset 解析配置中的标签集。
//
// 支持两种写法：
//
//	"iabcdefghjk"   每个字符是一个标签
//	"1-3,5,8-10"    整数范围，结果是整数符号
//
// allInt 为 true 时，单字符写法中的每个字符都按整数解析。
func ParseLabelset(raw string, allInt bool) ([]Symbol, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyAlphabet
	}
	if strings.ContainsAny(raw, "-,") {
		return parseRange(raw)
	}

	var out []Symbol
	for _, r := range raw {
		if allInt {
			n, err := strconv.Atoi(string(r))
			if err != nil {
				return nil, fmt.Errorf("%w: label %q in labelset is not an integer", ErrTypeKind, r)
			}
			out = append(out, Int(n))
			continue
		}
		out = append(out, Str(string(r)))
	}
	return out, nil
}

func parseRange(raw string) ([]Symbol, error) {
	var out []Symbol
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidLabelset, part)
			}
			out = append(out, Int(n))
			continue
		}
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("%w: bad range start in %q", ErrInvalidLabelset, part)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("%w: bad range end in %q", ErrInvalidLabelset, part)
		}
		if start > end {
			return nil, fmt.Errorf("%w: range %q is descending", ErrInvalidLabelset, part)
		}
		for n := start; n <= end; n++ {
			out = append(out, Int(n))
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyAlphabet
	}
	return out, nil
}
