package finance

import "github.com/wyfcoding/derivkit/contract"

// QuantoInputs 双币种期权输入。Rate 为本币利率，ForeignRate 为标的计价货币利率。
type QuantoInputs struct {
	Inputs
	ForeignRate  float64
	FXVolatility float64
	Correlation  float64
}

// QuantoInputsOf 从合约中提取双币种输入。
func QuantoInputsOf(c contract.Contract) QuantoInputs {
	return QuantoInputs{
		Inputs:       InputsOf(c),
		ForeignRate:  c.Quanto.ForeignRate,
		FXVolatility: c.Quanto.FXVolatility,
		Correlation:  c.Quanto.Correlation,
	}
}

// QuantoGreeks 双币种期权敏感度，在普通敏感度之外增加汇率波动率、外币利率与相关系数。
type QuantoGreeks struct {
	Greeks
	VegaFX         float64
	RhoForeign     float64
	RhoCorrelation float64
}

// drift 返回经相关性调整后的标的漂移 μ = r_f - q - ρ·σ·σ_fx。
func (in QuantoInputs) drift() float64 {
	return in.ForeignRate - in.Dividend - in.Correlation*in.Volatility*in.FXVolatility
}

// EffectiveDividend 返回等效股息 q' = r_d - μ。
func (in QuantoInputs) EffectiveDividend() float64 { return in.Rate - in.drift() }

// effective 以等效股息 q' = r_d - μ 表达为本币贴现的 Black-Scholes 输入。
func (in QuantoInputs) effective() Inputs {
	eff := in.Inputs
	eff.Dividend = in.EffectiveDividend()
	return eff
}

// QuantoPrice 双币种期权价格。
func QuantoPrice(right contract.Right, in QuantoInputs) float64 {
	return VanillaPrice(right, in.effective())
}

// QuantoPriceGreeks 双币种期权的闭式敏感度。
func QuantoPriceGreeks(right contract.Right, in QuantoInputs) QuantoGreeks {
	eff := in.effective()
	bs := VanillaGreeks(right, eff)
	// ∂V/∂μ：μ 只通过 q' 进入价格，且 ∂q'/∂μ = -1。
	dVdMu := -dividendRho(right, eff)

	g := QuantoGreeks{
		Greeks: Greeks{
			Delta: bs.Delta,
			Gamma: bs.Gamma,
			Vega:  bs.Vega - dVdMu*in.Correlation*in.FXVolatility,
			Theta: bs.Theta,
			Rho:   -in.Maturity * VanillaPrice(right, eff),
		},
		VegaFX:         -dVdMu * in.Correlation * in.Volatility,
		RhoForeign:     dVdMu,
		RhoCorrelation: -dVdMu * in.Volatility * in.FXVolatility,
	}
	return g
}
