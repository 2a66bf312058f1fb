// Package greeks 计算期权敏感度：解析偏导、二叉树有限差分、蒙特卡洛路径/似然比估计，以及参数扫描曲线。
package greeks

import (
	"context"
	"maps"
	"slices"

	"github.com/wyfcoding/derivkit/algorithm/finance"
	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/xerrors"
)

// 敏感度名称。Theta 为 -∂V/∂T，按年计。
const (
	Delta          = "Delta"
	Gamma          = "Gamma"
	Vega           = "Vega"
	Theta          = "Theta"
	Rho            = "Rho"
	VegaFX         = "Vega (FX)"
	RhoForeign     = "Rho (Foreign)"
	RhoCorrelation = "Rho (Correlation)"
)

var (
	baseKeys   = []string{Delta, Gamma, Vega, Theta, Rho}
	quantoKeys = []string{VegaFX, RhoForeign, RhoCorrelation}
)

// Keys 返回合约类别输出的敏感度名称，双币种期权额外包含汇率相关的三项。
func Keys(c contract.Contract) []string {
	if c.Category == contract.Quanto {
		return slices.Concat(baseKeys, quantoKeys)
	}
	return baseKeys
}

// Vector 敏感度名称到数值的映射。
type Vector map[string]float64

// Zero 返回合约对应名称全部为 0 的向量。
func Zero(c contract.Contract) Vector {
	v := make(Vector, 8)
	for _, k := range Keys(c) {
		v[k] = 0
	}
	return v
}

// Of 转换解析公式的五项敏感度。
func Of(g finance.Greeks) Vector {
	return Vector{Delta: g.Delta, Gamma: g.Gamma, Vega: g.Vega, Theta: g.Theta, Rho: g.Rho}
}

func ofQuanto(g finance.QuantoGreeks) Vector {
	v := Of(g.Greeks)
	v[VegaFX] = g.VegaFX
	v[RhoForeign] = g.RhoForeign
	v[RhoCorrelation] = g.RhoCorrelation
	return v
}

// AddScaled 把 w·o 累加到 v。
func (v Vector) AddScaled(o Vector, w float64) {
	for k, x := range o {
		v[k] += w * x
	}
}

// Clone 返回副本。
func (v Vector) Clone() Vector { return maps.Clone(v) }

// Engine 敏感度引擎。调用方负责在调用前完成合约校验。
type Engine interface {
	Greeks(ctx context.Context, c contract.Contract) (Vector, error)
}

// unsupported 自动赎回票据的敏感度不在任何引擎的支持范围内，需改用模拟报告。
func unsupported(engine string, c contract.Contract) error {
	if c.Category == contract.Autocall {
		return xerrors.ErrUnsupportedMethod.Derive("greeks are not defined for autocall notes; use SimulateAutocall").
			WithContext("category", c.Category.String())
	}
	return xerrors.ErrUnsupportedMethod.Derive("%s greeks of %s %s", engine, c.Exercise, c.Category).
		WithContext("engine", engine).
		WithContext("category", c.Category.String())
}

// sumLegs 按权重累加组合策略各腿的敏感度。
func sumLegs(ctx context.Context, e Engine, c contract.Contract) (Vector, error) {
	out := Zero(c)
	for i, l := range c.Legs {
		g, err := e.Greeks(ctx, c.Leg(i))
		if err != nil {
			return nil, err
		}
		out.AddScaled(g, l.Weight)
	}
	return out, nil
}
