package pricer

import (
	"context"

	"github.com/wyfcoding/derivkit/algorithm/finance"
	"github.com/wyfcoding/derivkit/contract"
)

// AnalyticPricer 闭式公式定价：欧式普通、数字、双币种、欧式障碍期权与欧式组合策略。
type AnalyticPricer struct{}

func NewAnalytic() *AnalyticPricer { return &AnalyticPricer{} }

func (*AnalyticPricer) Method() Method { return Analytic }

func (a *AnalyticPricer) Price(ctx context.Context, c contract.Contract) (Estimate, error) {
	if c.Exercise == contract.American {
		return Estimate{}, unsupported(Analytic, c)
	}
	in := finance.InputsOf(c)
	switch c.Category {
	case contract.Vanilla:
		return Estimate{Value: finance.VanillaPrice(c.Right, in)}, nil
	case contract.Digital:
		if c.KnockedOut() {
			return Estimate{}, nil
		}
		return Estimate{Value: finance.DigitalPrice(c.Right, in, c.Digital.Payout)}, nil
	case contract.Quanto:
		return Estimate{Value: finance.QuantoPrice(c.Right, finance.QuantoInputsOf(c))}, nil
	case contract.Barrier:
		switch {
		case c.KnockedOut():
			return Estimate{Value: c.Barrier.Rebate}, nil
		case c.KnockedIn():
			return Estimate{Value: finance.VanillaPrice(c.Right, in)}, nil
		}
		return Estimate{Value: finance.BarrierPrice(c.Right, in, c.Barrier)}, nil
	case contract.Strategy:
		return sumLegs(ctx, a, c)
	default:
		return Estimate{}, unsupported(Analytic, c)
	}
}
