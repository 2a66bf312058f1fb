package sim

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Moments 分批累积的样本均值与方差，批次之间按并行公式合并。
type Moments struct {
	n    float64
	mean float64
	m2   float64 // 离差平方和
}

// Merge 并入一批样本。
func (m *Moments) Merge(batch []float64) {
	if len(batch) == 0 {
		return
	}
	nb := float64(len(batch))
	mb, vb := stat.MeanVariance(batch, nil)
	if len(batch) == 1 {
		vb = 0
	}
	if m.n == 0 {
		m.n, m.mean, m.m2 = nb, mb, vb*(nb-1)
		return
	}
	n := m.n + nb
	delta := mb - m.mean
	m.mean += delta * nb / n
	m.m2 += vb*(nb-1) + delta*delta*m.n*nb/n
	m.n = n
}

// Count 返回样本数。
func (m *Moments) Count() int { return int(m.n) }

// Mean 返回样本均值。
func (m *Moments) Mean() float64 { return m.mean }

// Variance 返回无偏样本方差。
func (m *Moments) Variance() float64 {
	if m.n < 2 {
		return 0
	}
	return m.m2 / (m.n - 1)
}

// StdErr 返回均值的标准误。
func (m *Moments) StdErr() float64 {
	if m.n < 2 {
		return 0
	}
	return math.Sqrt(m.Variance() / m.n)
}
