package timebin

import "iter"

// Run 是向量中一段相同代码的最长连续区间，Start 和 End 都是闭区间下标
type Run struct {
	Code  int
	Start int
	End   int
}

// Len 返回区间包含的时间窗数
func (r Run) Len() int { return r.End - r.Start + 1 }

// Runs 从左到右惰性地产生 vec 中的所有最长连续区间。
// 返回的序列可以重复遍历，不会复制 vec。
func Runs(vec []int) iter.Seq[Run] {
	return func(yield func(Run) bool) {
		if len(vec) == 0 {
			return
		}
		start := 0
		for i := 1; i <= len(vec); i++ {
			if i < len(vec) && vec[i] == vec[start] {
				continue
			}
			if !yield(Run{Code: vec[start], Start: start, End: i - 1}) {
				return
			}
			start = i
		}
	}
}
