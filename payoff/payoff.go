// Package payoff 路径收益计算：欧式、亚式、回望、障碍与自动赎回票据，以及按当前价格计算的即时收益。
package payoff

import (
	"math"

	"github.com/wyfcoding/derivkit/contract"
)

// Evaluator 计算单条价格路径的到期收益（未贴现）。path[0] 为期初价格。
type Evaluator interface {
	Payoff(path []float64) float64
}

// Pathwise 可以逐路径给出 ∂payoff/∂S0 的收益。
type Pathwise interface {
	Evaluator
	PathwiseDelta(path []float64) float64
}

// European 欧式到期收益。
type European struct {
	Right  contract.Right
	Strike float64
}

func (e European) Payoff(path []float64) float64 {
	return e.Right.Intrinsic(path[len(path)-1], e.Strike)
}

func (e European) PathwiseDelta(path []float64) float64 {
	st := path[len(path)-1]
	if e.Right.Intrinsic(st, e.Strike) <= 0 {
		return 0
	}
	return e.Right.Sign() * st / path[0]
}

// Digital 到期现金或无价值收益。收益不连续，没有逐路径导数。
type Digital struct {
	Right  contract.Right
	Strike float64
	Payout float64
}

func (d Digital) Payoff(path []float64) float64 {
	if d.Right.Sign()*(path[len(path)-1]-d.Strike) > 0 {
		return d.Payout
	}
	return 0
}

// Asian 离散观察的平均价格期权。
type Asian struct {
	Right     contract.Right
	Strike    float64
	Averaging contract.Averaging
	Indices   []int
}

// NewAsian 按观察频率在 steps 步的网格上选取观察点：
// 观察次数 round(T·f) 不超过 steps 且至少为 1，第 i 个观察点位于 ⌊i·steps/n⌋。
func NewAsian(c contract.Contract, steps int) Asian {
	n := int(math.Round(c.Maturity * c.Asian.Frequency.PerYear()))
	n = max(min(n, steps), 1)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i * steps / n
	}
	return Asian{Right: c.Right, Strike: c.Strike, Averaging: c.Asian.Averaging, Indices: idx}
}

func (a Asian) average(path []float64) float64 {
	sum := 0.0
	if a.Averaging == contract.Geometric {
		for _, i := range a.Indices {
			sum += math.Log(path[i])
		}
		return math.Exp(sum / float64(len(a.Indices)))
	}
	for _, i := range a.Indices {
		sum += path[i]
	}
	return sum / float64(len(a.Indices))
}

func (a Asian) Payoff(path []float64) float64 {
	return a.Right.Intrinsic(a.average(path), a.Strike)
}

func (a Asian) PathwiseDelta(path []float64) float64 {
	avg := a.average(path)
	if a.Right.Intrinsic(avg, a.Strike) <= 0 {
		return 0
	}
	return a.Right.Sign() * avg / path[0]
}

// Lookback 回望期权，极值取自包括期初在内的全部路径点。
type Lookback struct {
	Right      contract.Right
	Strike     float64
	StrikeType contract.StrikeType
}

func extremes(path []float64) (lo, hi float64) {
	lo, hi = path[0], path[0]
	for _, s := range path[1:] {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	return lo, hi
}

func (l Lookback) Payoff(path []float64) float64 {
	lo, hi := extremes(path)
	st := path[len(path)-1]
	switch {
	case l.StrikeType == contract.Floating && l.Right == contract.Put:
		return hi - st
	case l.StrikeType == contract.Floating:
		return st - lo
	case l.Right == contract.Put:
		return math.Max(l.Strike-lo, 0)
	default:
		return math.Max(hi-l.Strike, 0)
	}
}

// PathwiseDelta 浮动行权价的收益关于路径一次齐次，导数即 payoff/S0；
// 固定行权价只有价内时极值项贡献导数。
func (l Lookback) PathwiseDelta(path []float64) float64 {
	if l.StrikeType == contract.Floating {
		return l.Payoff(path) / path[0]
	}
	if l.Payoff(path) <= 0 {
		return 0
	}
	lo, hi := extremes(path)
	if l.Right == contract.Put {
		return -lo / path[0]
	}
	return hi / path[0]
}

// Barrier 逐点监控的障碍期权，期初价格同样参与监控。
type Barrier struct {
	Right  contract.Right
	Strike float64
	Terms  contract.BarrierTerms
}

func (b Barrier) crossed(path []float64) bool {
	for _, s := range path {
		if b.Terms.Direction.Crossed(s, b.Terms.Level) {
			return true
		}
	}
	return false
}

func (b Barrier) Payoff(path []float64) float64 {
	vanilla := b.Right.Intrinsic(path[len(path)-1], b.Strike)
	hit := b.crossed(path)
	if b.Terms.Knock == contract.In {
		if hit {
			return vanilla
		}
		return b.Terms.Rebate
	}
	if hit {
		return b.Terms.Rebate
	}
	return vanilla
}

// For 返回合约类别对应的路径收益；自动赎回与组合策略不在此列。
func For(c contract.Contract, steps int) (Evaluator, bool) {
	switch c.Category {
	case contract.Vanilla, contract.Quanto:
		return European{Right: c.Right, Strike: c.Strike}, true
	case contract.Digital:
		return Digital{Right: c.Right, Strike: c.Strike, Payout: c.Digital.Payout}, true
	case contract.Asian:
		return NewAsian(c, steps), true
	case contract.Lookback:
		return Lookback{Right: c.Right, Strike: c.Strike, StrikeType: c.Lookback.StrikeType}, true
	case contract.Barrier:
		return Barrier{Right: c.Right, Strike: c.Strike, Terms: c.Barrier}, true
	default:
		return nil, false
	}
}
