package contract

import (
	"slices"

	"github.com/wyfcoding/derivkit/xerrors"
)

// Param 可被敏感度计算覆盖的市场参数。
type Param uint8

const (
	ParamSpot Param = iota
	ParamVolatility
	ParamRate
	ParamDividend
	ParamMaturity
	ParamForeignRate
	ParamFXVolatility
	ParamCorrelation
)

var paramText = enumText{
	kind:  "parameter",
	names: []string{"spot", "volatility", "rate", "dividend", "maturity", "foreign_rate", "fx_volatility", "correlation"},
	err:   xerrors.ErrMissingTerms,
}

func (p Param) String() string { return paramText.name(uint8(p)) }

// ParseParam 解析参数名。
func ParseParam(s string) (Param, error) {
	v, err := paramText.parse(s)
	return Param(v), err
}

func (p Param) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Param) UnmarshalText(b []byte) error {
	v, err := ParseParam(string(b))
	*p = v
	return err
}

// Value 读取参数当前值。组合策略的波动率取第一条腿。
func (c Contract) Value(p Param) float64 {
	switch p {
	case ParamSpot:
		return c.Spot
	case ParamVolatility:
		if c.Category == Strategy && len(c.Legs) > 0 {
			return c.Legs[0].Volatility
		}
		return c.Volatility
	case ParamRate:
		return c.Rate
	case ParamDividend:
		return c.Dividend
	case ParamMaturity:
		return c.Maturity
	case ParamForeignRate:
		return c.Quanto.ForeignRate
	case ParamFXVolatility:
		return c.Quanto.FXVolatility
	case ParamCorrelation:
		return c.Quanto.Correlation
	default:
		return 0
	}
}

// With 返回参数 p 被设为 v 的新合约，原合约保持不变。
// 组合策略的波动率覆盖统一作用于每一条腿。
func (c Contract) With(p Param, v float64) Contract {
	out := c
	out.Legs = slices.Clone(c.Legs)
	switch p {
	case ParamSpot:
		out.Spot = v
	case ParamVolatility:
		out.Volatility = v
		for i := range out.Legs {
			out.Legs[i].Volatility = v
		}
	case ParamRate:
		out.Rate = v
	case ParamDividend:
		out.Dividend = v
	case ParamMaturity:
		out.Maturity = v
	case ParamForeignRate:
		out.Quanto.ForeignRate = v
	case ParamFXVolatility:
		out.Quanto.FXVolatility = v
	case ParamCorrelation:
		out.Quanto.Correlation = v
	}
	return out
}

// Bump 返回参数 p 平移 dv 后的新合约。组合策略的每条腿各自平移同样的幅度。
func (c Contract) Bump(p Param, dv float64) Contract {
	if p == ParamVolatility && c.Category == Strategy {
		out := c.With(ParamVolatility, c.Volatility+dv)
		for i := range out.Legs {
			out.Legs[i].Volatility = c.Legs[i].Volatility + dv
		}
		return out
	}
	return c.With(p, c.Value(p)+dv)
}
