// Package finance 期权解析定价公式：Black-Scholes、数字期权、双币种期权、障碍期权静态复制，
// 以及隐含波动率反解与 Longstaff-Schwartz 回归。
package finance

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/xerrors"
)

// Inputs Black-Scholes 模型输入，Rate 与 Dividend 为连续复利年化值。
type Inputs struct {
	Spot       float64
	Strike     float64
	Maturity   float64
	Rate       float64
	Dividend   float64
	Volatility float64
}

// InputsOf 从合约中提取模型输入。
func InputsOf(c contract.Contract) Inputs {
	return Inputs{
		Spot:       c.Spot,
		Strike:     c.Strike,
		Maturity:   c.Maturity,
		Rate:       c.Rate,
		Dividend:   c.Dividend,
		Volatility: c.Volatility,
	}
}

func (in Inputs) d1d2() (d1, d2 float64) {
	volSqrtT := in.Volatility * math.Sqrt(in.Maturity)
	d1 = (math.Log(in.Spot/in.Strike) + (in.Rate-in.Dividend+0.5*in.Volatility*in.Volatility)*in.Maturity) / volSqrtT
	return d1, d1 - volSqrtT
}

// Greeks 一阶与二阶敏感度，单位为每单位参数、每年。
type Greeks struct {
	Delta float64
	Gamma float64
	Vega  float64
	Theta float64
	Rho   float64
}

// Scale 按权重缩放。
func (g Greeks) Scale(w float64) Greeks {
	return Greeks{Delta: g.Delta * w, Gamma: g.Gamma * w, Vega: g.Vega * w, Theta: g.Theta * w, Rho: g.Rho * w}
}

// Add 逐项相加。
func (g Greeks) Add(o Greeks) Greeks {
	return Greeks{Delta: g.Delta + o.Delta, Gamma: g.Gamma + o.Gamma, Vega: g.Vega + o.Vega, Theta: g.Theta + o.Theta, Rho: g.Rho + o.Rho}
}

func normCDF(x float64) float64 { return distuv.UnitNormal.CDF(x) }

func normPDF(x float64) float64 { return distuv.UnitNormal.Prob(x) }

// VanillaPrice 欧式期权价格。
func VanillaPrice(right contract.Right, in Inputs) float64 {
	d1, d2 := in.d1d2()
	expRT := math.Exp(-in.Rate * in.Maturity)
	expQT := math.Exp(-in.Dividend * in.Maturity)
	if right == contract.Put {
		return in.Strike*expRT*normCDF(-d2) - in.Spot*expQT*normCDF(-d1)
	}
	return in.Spot*expQT*normCDF(d1) - in.Strike*expRT*normCDF(d2)
}

// VanillaGreeks 欧式期权的闭式敏感度。Theta 为日历时间流逝的价值变化 -∂V/∂T。
func VanillaGreeks(right contract.Right, in Inputs) Greeks {
	d1, d2 := in.d1d2()
	s, k, t, r, q, sigma := in.Spot, in.Strike, in.Maturity, in.Rate, in.Dividend, in.Volatility
	sqrtT := math.Sqrt(t)
	expRT := math.Exp(-r * t)
	expQT := math.Exp(-q * t)
	phiD1 := normPDF(d1)

	g := Greeks{
		Gamma: expQT * phiD1 / (s * sigma * sqrtT),
		Vega:  s * expQT * phiD1 * sqrtT,
	}
	decay := -s * expQT * phiD1 * sigma / (2 * sqrtT)
	if right == contract.Put {
		g.Delta = expQT * (normCDF(d1) - 1)
		g.Theta = decay + r*k*expRT*normCDF(-d2) - q*s*expQT*normCDF(-d1)
		g.Rho = -k * t * expRT * normCDF(-d2)
	} else {
		g.Delta = expQT * normCDF(d1)
		g.Theta = decay - r*k*expRT*normCDF(d2) + q*s*expQT*normCDF(d1)
		g.Rho = k * t * expRT * normCDF(d2)
	}
	return g
}

// dividendRho 返回 ∂V/∂q。
func dividendRho(right contract.Right, in Inputs) float64 {
	d1, _ := in.d1d2()
	sign := right.Sign()
	return -sign * in.Maturity * in.Spot * math.Exp(-in.Dividend*in.Maturity) * normCDF(sign*d1)
}

// ImpliedVolatility 由欧式期权价格反解波动率。先做 Newton-Raphson，
// vega 过小或迭代越出区间时退回二分法。
func ImpliedVolatility(right contract.Right, in Inputs, price float64) (float64, error) {
	lower, upper := noArbitrageBounds(right, in)
	if !(price > lower && price < upper) {
		return 0, xerrors.ErrPriceOutOfBounds.Derive("price=%g bounds=(%g, %g)", price, lower, upper)
	}

	const (
		tolerance     = 1e-10
		maxIterations = 100
		volFloor      = 1e-6
		volCeiling    = 5.0
	)

	lo, hi := volFloor, volCeiling
	sigma := 0.3
	for range maxIterations {
		in.Volatility = sigma
		diff := VanillaPrice(right, in) - price
		if math.Abs(diff) < tolerance {
			return sigma, nil
		}
		// 价格对波动率单调递增，维护包含根的区间。
		if diff > 0 {
			hi = sigma
		} else {
			lo = sigma
		}

		vega := VanillaGreeks(right, in).Vega
		next := sigma - diff/vega
		if vega < 1e-12 || next <= lo || next >= hi || math.IsNaN(next) {
			next = 0.5 * (lo + hi)
		}
		if hi-lo < tolerance {
			return next, nil
		}
		sigma = next
	}
	return 0, xerrors.ErrNoConvergence.Derive("implied volatility after %d iterations, last sigma=%g", maxIterations, sigma)
}

func noArbitrageBounds(right contract.Right, in Inputs) (lower, upper float64) {
	fwdS := in.Spot * math.Exp(-in.Dividend*in.Maturity)
	pvK := in.Strike * math.Exp(-in.Rate*in.Maturity)
	if right == contract.Put {
		return math.Max(pvK-fwdS, 0), pvK
	}
	return math.Max(fwdS-pvK, 0), fwdS
}
