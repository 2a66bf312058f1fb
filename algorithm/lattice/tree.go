// Package lattice Cox-Ross-Rubinstein 二叉树与逆向归纳定价。
package lattice

import (
	"math"

	"github.com/wyfcoding/derivkit/xerrors"
)

// Tree CRR 二叉树参数。节点价格按需计算，不物化整棵树。
type Tree struct {
	Spot     float64
	Steps    int
	Dt       float64
	Up       float64
	Down     float64
	Prob     float64 // 风险中性上行概率
	Discount float64 // 单步折现因子 e^{-r·dt}
}

// Build 构造 CRR 树。风险中性概率不在 [0,1] 时返回 ModelError，不做截断。
func Build(spot, maturity, rate, dividend, vol float64, steps int) (*Tree, error) {
	if steps <= 0 {
		return nil, xerrors.ErrNonPositiveCount.Derive("lattice steps=%d", steps)
	}

	dt := maturity / float64(steps)
	u := math.Exp(vol * math.Sqrt(dt))
	d := 1 / u
	p := (math.Exp((rate-dividend)*dt) - d) / (u - d)
	if !(p >= 0 && p <= 1) {
		return nil, xerrors.ErrProbabilityRange.Derive("p=%g (steps=%d dt=%g vol=%g r-q=%g)", p, steps, dt, vol, rate-dividend).
			WithContext("probability", p)
	}

	return &Tree{
		Spot:     spot,
		Steps:    steps,
		Dt:       dt,
		Up:       u,
		Down:     d,
		Prob:     p,
		Discount: math.Exp(-rate * dt),
	}, nil
}

// Node 返回第 i 步、上行 j 次的节点价格。
func (t *Tree) Node(i, j int) float64 {
	return t.Spot * math.Pow(t.Up, float64(2*j-i))
}

// Payoff 节点上的行权价值。
type Payoff func(s float64) float64

// Barrier 逐节点监控的障碍。In 为真表示敲入，否则为敲出。
type Barrier struct {
	Level  float64
	Up     bool
	In     bool
	Rebate float64
}

func (b Barrier) crossed(s float64) bool {
	if b.Up {
		return s >= b.Level
	}
	return s <= b.Level
}

// terminal 返回到期层的节点价格，逆向归纳时每退一步整体乘以 Up。
func (t *Tree) terminal() []float64 {
	s := make([]float64, t.Steps+1)
	for j := range s {
		s[j] = t.Node(t.Steps, j)
	}
	return s
}

func (t *Tree) continuation(v []float64, j int) float64 {
	return t.Discount * (t.Prob*v[j+1] + (1-t.Prob)*v[j])
}

// Price 对普通期权做逆向归纳，american 为真时每个节点取继续价值与内在价值的较大者。
func (t *Tree) Price(payoff Payoff, american bool) float64 {
	s := t.terminal()
	v := make([]float64, len(s))
	for j := range s {
		v[j] = payoff(s[j])
	}

	for i := t.Steps - 1; i >= 0; i-- {
		for j := 0; j <= i; j++ {
			s[j] *= t.Up
			v[j] = t.continuation(v, j)
			if american {
				v[j] = math.Max(v[j], payoff(s[j]))
			}
		}
	}
	return v[0]
}

// PriceBarrier 对障碍期权做逆向归纳，障碍在包括根节点与到期节点在内的每个节点上监控。
// 敲出：触及节点的价值替换为返还金额。
// 敲入：同时维护已敲入层（普通期权）与未敲入层，未敲入层在触及节点取已敲入层的价值，
// 到期未触及时取返还金额。
func (t *Tree) PriceBarrier(payoff Payoff, american bool, b Barrier) float64 {
	if b.In {
		return t.priceKnockIn(payoff, american, b)
	}

	s := t.terminal()
	v := make([]float64, len(s))
	for j := range s {
		if b.crossed(s[j]) {
			v[j] = b.Rebate
		} else {
			v[j] = payoff(s[j])
		}
	}

	for i := t.Steps - 1; i >= 0; i-- {
		for j := 0; j <= i; j++ {
			s[j] *= t.Up
			if b.crossed(s[j]) {
				v[j] = b.Rebate
				continue
			}
			v[j] = t.continuation(v, j)
			if american {
				v[j] = math.Max(v[j], payoff(s[j]))
			}
		}
	}
	return v[0]
}

func (t *Tree) priceKnockIn(payoff Payoff, american bool, b Barrier) float64 {
	s := t.terminal()
	knocked := make([]float64, len(s))
	pending := make([]float64, len(s))
	for j := range s {
		knocked[j] = payoff(s[j])
		if b.crossed(s[j]) {
			pending[j] = knocked[j]
		} else {
			pending[j] = b.Rebate
		}
	}

	for i := t.Steps - 1; i >= 0; i-- {
		for j := 0; j <= i; j++ {
			s[j] *= t.Up
			knocked[j] = t.continuation(knocked, j)
			if american {
				knocked[j] = math.Max(knocked[j], payoff(s[j]))
			}
			if b.crossed(s[j]) {
				pending[j] = knocked[j]
			} else {
				pending[j] = t.continuation(pending, j)
			}
		}
	}
	return pending[0]
}
