package finance

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wyfcoding/derivkit/xerrors"
)

// LSMPricer 实现了 Longstaff-Schwartz (LSM) 算法
type LSMPricer struct {
	Degree int // 回归多项式的阶数
}

func NewLSMPricer(degree int) *LSMPricer {
	if degree <= 0 {
		degree = 2
	}
	return &LSMPricer{Degree: degree}
}

// LSMResult 美式期权估值及其标准误。
type LSMResult struct {
	Price  float64
	StdErr float64
}

// ComputePrice 在给定价格路径矩阵（n×(steps+1)，首列为期初价格）上计算美式期权现值。
func (p *LSMPricer) ComputePrice(prices *mat.Dense, payoff func(s float64) float64, rate, dt float64) (LSMResult, error) {
	n, cols := prices.Dims()
	steps := cols - 1
	df := math.Exp(-rate * dt)
	spot := prices.At(0, 0)

	// 1. 初始化末端收益
	cashFlows := make([]float64, n)
	for i := range cashFlows {
		cashFlows[i] = payoff(prices.At(i, steps))
	}

	// 2. 反向回归，回归变量按期初价格归一化
	xData := make([]float64, 0, n)
	yData := make([]float64, 0, n)
	indices := make([]int, 0, n)
	for t := steps - 1; t > 0; t-- {
		xData, yData, indices = xData[:0], yData[:0], indices[:0]
		for i := range n {
			cashFlows[i] *= df
			s := prices.At(i, t)
			if payoff(s) > 0 { // 仅考虑价内路径
				xData = append(xData, s/spot)
				yData = append(yData, cashFlows[i])
				indices = append(indices, i)
			}
		}
		if len(indices) <= p.Degree+1 {
			continue
		}

		coeffs, err := p.regress(xData, yData)
		if err != nil {
			return LSMResult{}, err
		}

		// 比较行权价值与预测的延续价值
		for idx, i := range indices {
			iv := payoff(prices.At(i, t))
			if iv >= coeffs.Eval(xData[idx]) {
				cashFlows[i] = iv
			}
		}
	}

	for i := range cashFlows {
		cashFlows[i] *= df
	}
	mean, std := stat.MeanStdDev(cashFlows, nil)
	res := LSMResult{Price: mean, StdErr: std / math.Sqrt(float64(n))}
	if iv := payoff(spot); iv > res.Price {
		res = LSMResult{Price: iv}
	}
	return res, nil
}

// regress 以 QR 分解求解 Vandermonde 最小二乘问题。
func (p *LSMPricer) regress(x, y []float64) (Polynomial, error) {
	return PolyFit(x, y, p.Degree)
}

// Polynomial 多项式系数，下标即次数。
type Polynomial []float64

// Eval 以 Horner 法求多项式值。
func (p Polynomial) Eval(x float64) float64 {
	v := 0.0
	for i := len(p) - 1; i >= 0; i-- {
		v = v*x + p[i]
	}
	return v
}

// Derivative 返回导函数。
func (p Polynomial) Derivative() Polynomial {
	if len(p) <= 1 {
		return Polynomial{0}
	}
	d := make(Polynomial, len(p)-1)
	for i := 1; i < len(p); i++ {
		d[i-1] = float64(i) * p[i]
	}
	return d
}

// PolyFit 最小二乘拟合 degree 阶多项式。
func PolyFit(x, y []float64, degree int) (Polynomial, error) {
	m := degree + 1
	if len(x) < m {
		return nil, xerrors.ErrDegenerateFit.Derive("%d points for degree %d", len(x), degree)
	}

	// A 是 Vandermonde 矩阵 [n x m]
	a := mat.NewDense(len(x), m, nil)
	for i, xi := range x {
		v := 1.0
		for j := range m {
			a.Set(i, j, v)
			v *= xi
		}
	}

	var qr mat.QR
	qr.Factorize(a)
	var coeffs mat.VecDense
	if err := qr.SolveVecTo(&coeffs, false, mat.NewVecDense(len(y), y)); err != nil {
		return nil, xerrors.ErrRegression.Derive("degree %d over %d points: %v", degree, len(x), err)
	}
	return Polynomial(coeffs.RawVector().Data), nil
}
