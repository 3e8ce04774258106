package timebin

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// durationDecimals 用于消除上游频谱计算带来的浮点抖动
const durationDecimals = 3

// DurationOf 返回一个文件的时间窗时长：相邻中心时间差的平均值，保留 3 位小数
func DurationOf(file string, centers []float64) (float64, error) {
	n := len(centers)
	if n < 2 {
		return 0, fileErr(file, fmt.Errorf("%w: got %d", ErrInsufficientData, n))
	}
	for i, c := range centers {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return 0, fileErr(file, fmt.Errorf("%w: center %d is %g", ErrInvalidTimebins, i, c))
		}
		if i > 0 && c <= centers[i-1] {
			return 0, fileErr(file, fmt.Errorf("%w: center %d (%g) does not follow %g", ErrInvalidTimebins, i, c, centers[i-1]))
		}
	}

	// diffs = centers[1:] - centers[:n-1]
	diffs := make([]float64, n-1)
	vecmath.ScaleBlock(diffs, centers[:n-1], -1)
	vecmath.AddBlockInPlace(diffs, centers[1:])

	var sum float64
	for _, d := range diffs {
		sum += d
	}
	dur := roundTo(sum/float64(n-1), durationDecimals)
	if dur <= 0 {
		return 0, fileErr(file, fmt.Errorf("%w: mean spacing %g rounds to %g", ErrInvalidTimebins, sum/float64(n-1), dur))
	}
	return dur, nil
}

func roundTo(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.RoundToEven(x*p) / p
}

// Canonical 是数据集时间窗时长的累加器。
// 第一个观察到的文件确定标准时长，之后的文件必须与之相等。
type Canonical struct {
	value  float64
	source string
	set    bool
}

// SeedCanonical 用已知的标准时长初始化累加器，例如从数据库恢复
func SeedCanonical(dur float64, source string) Canonical {
	return Canonical{value: dur, source: source, set: true}
}

// Value 返回标准时长；还没有观察到任何文件时返回 false
func (c Canonical) Value() (float64, bool) { return c.value, c.set }

// Source 返回确定标准时长的文件
func (c Canonical) Source() string { return c.source }

// Observe 计算 f 的时长并与标准时长比较，返回新的累加器
func (c Canonical) Observe(f FileTimebins) (Canonical, error) {
	dur, err := DurationOf(f.File, f.Centers)
	if err != nil {
		return c, err
	}
	if !c.set {
		return Canonical{value: dur, source: f.File, set: true}, nil
	}
	if dur != c.value {
		return c, fileErr(f.File, fmt.Errorf("%w: %.3f s, dataset uses %.3f s (from %s)",
			ErrInconsistentDuration, dur, c.value, c.source))
	}
	return c, nil
}

// ValidateDuration 校验所有文件的时间窗时长一致，并返回该时长
func ValidateDuration(files []FileTimebins) (float64, error) {
	if len(files) == 0 {
		return 0, fmt.Errorf("%w: no files", ErrInsufficientData)
	}
	var (
		acc Canonical
		err error
	)
	for _, f := range files {
		if acc, err = acc.Observe(f); err != nil {
			return 0, err
		}
	}
	dur, _ := acc.Value()
	return dur, nil
}
