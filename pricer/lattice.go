package pricer

import (
	"context"

	"github.com/wyfcoding/derivkit/algorithm/finance"
	"github.com/wyfcoding/derivkit/algorithm/lattice"
	"github.com/wyfcoding/derivkit/contract"
)

// LatticePricer CRR 二叉树定价：普通、障碍、数字与双币种期权，支持美式行权。
type LatticePricer struct {
	Steps int
}

func NewLattice(steps int) *LatticePricer { return &LatticePricer{Steps: steps} }

func (*LatticePricer) Method() Method { return Lattice }

func (l *LatticePricer) Price(ctx context.Context, c contract.Contract) (Estimate, error) {
	american := c.Exercise == contract.American
	dividend := c.Dividend
	payoff := func(s float64) float64 { return c.Right.Intrinsic(s, c.Strike) }

	switch c.Category {
	case contract.Vanilla, contract.Barrier:
	case contract.Quanto:
		dividend = finance.QuantoInputsOf(c).EffectiveDividend()
	case contract.Digital:
		if c.KnockedOut() {
			return Estimate{}, nil
		}
		payoff = func(s float64) float64 {
			if c.Right.Sign()*(s-c.Strike) > 0 {
				return c.Digital.Payout
			}
			return 0
		}
	case contract.Strategy:
		return sumLegs(ctx, l, c)
	default:
		return Estimate{}, unsupported(Lattice, c)
	}

	tree, err := lattice.Build(c.Spot, c.Maturity, c.Rate, dividend, c.Volatility, l.Steps)
	if err != nil {
		return Estimate{}, err
	}
	if c.Category != contract.Barrier {
		return Estimate{Value: tree.Price(payoff, american)}, nil
	}
	b := lattice.Barrier{
		Level:  c.Barrier.Level,
		Up:     c.Barrier.Direction == contract.Up,
		In:     c.Barrier.Knock == contract.In,
		Rebate: c.Barrier.Rebate,
	}
	return Estimate{Value: tree.PriceBarrier(payoff, american, b)}, nil
}
