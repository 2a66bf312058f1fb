package greeks

import (
	"context"

	"github.com/wyfcoding/derivkit/algorithm/finance"
	"github.com/wyfcoding/derivkit/contract"
)

// Analytic 闭式偏导。支持欧式普通、数字、双币种、障碍期权与欧式组合策略。
type Analytic struct{}

func (a Analytic) Greeks(ctx context.Context, c contract.Contract) (Vector, error) {
	if c.Exercise == contract.American {
		return nil, unsupported("analytic", c)
	}
	in := finance.InputsOf(c)
	switch c.Category {
	case contract.Vanilla:
		return Of(finance.VanillaGreeks(c.Right, in)), nil
	case contract.Digital:
		if c.KnockedOut() {
			return Zero(c), nil
		}
		return Of(finance.DigitalGreeks(c.Right, in, c.Digital.Payout)), nil
	case contract.Quanto:
		return ofQuanto(finance.QuantoPriceGreeks(c.Right, finance.QuantoInputsOf(c))), nil
	case contract.Barrier:
		switch {
		case c.KnockedOut():
			return Zero(c), nil
		case c.KnockedIn():
			return Of(finance.VanillaGreeks(c.Right, in)), nil
		}
		return Of(finance.BarrierGreeks(c.Right, in, c.Barrier)), nil
	case contract.Strategy:
		return sumLegs(ctx, a, c)
	default:
		return nil, unsupported("analytic", c)
	}
}
