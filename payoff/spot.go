package payoff

import "github.com/wyfcoding/derivkit/contract"

// AtSpot 以当前价格作为到期价格计算即时收益。
func AtSpot(c contract.Contract) float64 {
	s := c.Spot
	switch c.Category {
	case contract.Barrier:
		b := c.Barrier
		crossed := b.Direction.Crossed(s, b.Level)
		if (b.Knock == contract.Out && crossed) || (b.Knock == contract.In && !crossed) {
			return b.Rebate
		}
		return c.Right.Intrinsic(s, c.Strike)
	case contract.Digital:
		if c.Digital.Breached(s) {
			return 0
		}
		if c.Right.Sign()*(s-c.Strike) > 0 {
			return c.Digital.Payout
		}
		return 0
	case contract.Lookback:
		if c.Lookback.StrikeType == contract.Floating {
			return 0
		}
		return c.Right.Intrinsic(s, c.Strike)
	case contract.Autocall:
		capital, early, _ := c.Autocall.Levels(c.Spot)
		notional := c.Spot
		switch {
		case s >= early:
			return notional + c.Autocall.Coupon
		case s <= capital:
			return s
		default:
			return notional
		}
	case contract.Strategy:
		total := 0.0
		for i, l := range c.Legs {
			total += l.Weight * AtSpot(c.Leg(i))
		}
		return total
	default:
		return c.Right.Intrinsic(s, c.Strike)
	}
}
