package finance

import (
	"math"

	"github.com/wyfcoding/derivkit/contract"
)

// DigitalPrice 现金或无价值数字期权：payout·e^{-rT}·N(±d2)。
func DigitalPrice(right contract.Right, in Inputs, payout float64) float64 {
	_, d2 := in.d1d2()
	return payout * math.Exp(-in.Rate*in.Maturity) * normCDF(right.Sign()*d2)
}

// DigitalGreeks 对 DigitalPrice 逐项求导。
func DigitalGreeks(right contract.Right, in Inputs, payout float64) Greeks {
	d1, d2 := in.d1d2()
	s, t, sigma := in.Spot, in.Maturity, in.Volatility
	sign := right.Sign()
	sqrtT := math.Sqrt(t)
	disc := payout * math.Exp(-in.Rate*t)
	price := disc * normCDF(sign*d2)
	// 公共因子 c·e^{-rT}·φ(d2)·(±1)，乘以 d2 对各参数的偏导即得敏感度。
	core := disc * normPDF(d2) * sign

	// ∂d2/∂T = (d2 - 2·ln(S/K)/(σ√T)) / (2T)
	dD2dT := (d2 - 2*math.Log(s/in.Strike)/(sigma*sqrtT)) / (2 * t)
	return Greeks{
		Delta: core / (s * sigma * sqrtT),
		Gamma: -core * d1 / (s * s * sigma * sigma * t),
		Vega:  -core * d1 / sigma,
		Theta: in.Rate*price - core*dD2dT,
		Rho:   -t*price + core*sqrtT/sigma,
	}
}
