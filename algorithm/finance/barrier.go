package finance

import (
	"math"

	"github.com/wyfcoding/derivkit/contract"
)

// replicationLeg 静态复制中的一项：系数与期权方向。
type replicationLeg struct {
	coef  float64
	right contract.Right
}

type barrierKey struct {
	right       contract.Right
	direction   contract.Direction
	knock       contract.Knock
	strikeAbove bool // K >= H
}

const (
	call = contract.Call
	put  = contract.Put
)

// replication 欧式障碍期权的静态复制表：
// 价格 = a1·V(K, r1) + a2·V(H, r2) + a3·|K-H|·D(H, r3)，D 为单位数字期权。
var replication = map[barrierKey][3]replicationLeg{
	{call, contract.Down, contract.In, true}:  {{0, call}, {0, call}, {0, put}},
	{call, contract.Down, contract.Out, true}: {{1, call}, {0, call}, {0, put}},
	{call, contract.Up, contract.In, true}:    {{1, call}, {0, call}, {0, call}},
	{call, contract.Up, contract.Out, true}:   {{0, call}, {0, call}, {0, call}},
	{put, contract.Down, contract.In, true}:   {{0, put}, {1, put}, {1, put}},
	{put, contract.Down, contract.Out, true}:  {{1, put}, {-1, put}, {-1, put}},
	{put, contract.Up, contract.In, true}:     {{1, put}, {-1, put}, {-1, put}},
	{put, contract.Up, contract.Out, true}:    {{0, put}, {1, put}, {1, put}},

	{call, contract.Down, contract.In, false}:  {{1, call}, {-1, call}, {-1, call}},
	{call, contract.Down, contract.Out, false}: {{0, call}, {1, call}, {1, call}},
	{call, contract.Up, contract.In, false}:    {{0, call}, {1, call}, {1, call}},
	{call, contract.Up, contract.Out, false}:   {{1, call}, {-1, call}, {-1, call}},
	{put, contract.Down, contract.In, false}:   {{1, put}, {0, put}, {0, put}},
	{put, contract.Down, contract.Out, false}:  {{0, put}, {0, put}, {0, put}},
	{put, contract.Up, contract.In, false}:     {{0, put}, {0, put}, {0, put}},
	{put, contract.Up, contract.Out, false}:    {{1, put}, {0, put}, {0, put}},
}

// rebateRight 返还金额以数字期权支付，方向取障碍收益作废的一侧。
func rebateRight(b contract.BarrierTerms) contract.Right {
	switch {
	case b.Direction == contract.Down && b.Knock == contract.Out,
		b.Direction == contract.Up && b.Knock == contract.In:
		return contract.Put
	default:
		return contract.Call
	}
}

func barrierLegs(right contract.Right, in Inputs, b contract.BarrierTerms) [3]replicationLeg {
	return replication[barrierKey{right, b.Direction, b.Knock, in.Strike >= b.Level}]
}

// BarrierPrice 以静态复制计算欧式障碍期权价格。调用方负责处理定价时刻已触及障碍的情形。
func BarrierPrice(right contract.Right, in Inputs, b contract.BarrierTerms) float64 {
	legs := barrierLegs(right, in, b)
	atBarrier := in
	atBarrier.Strike = b.Level

	price := legs[0].coef*VanillaPrice(legs[0].right, in) +
		legs[1].coef*VanillaPrice(legs[1].right, atBarrier) +
		legs[2].coef*math.Abs(in.Strike-b.Level)*DigitalPrice(legs[2].right, atBarrier, 1)
	if b.Rebate != 0 {
		price += DigitalPrice(rebateRight(b), atBarrier, b.Rebate)
	}
	return price
}

// BarrierGreeks 复制组合各项敏感度的线性组合。
func BarrierGreeks(right contract.Right, in Inputs, b contract.BarrierTerms) Greeks {
	legs := barrierLegs(right, in, b)
	atBarrier := in
	atBarrier.Strike = b.Level

	g := VanillaGreeks(legs[0].right, in).Scale(legs[0].coef).
		Add(VanillaGreeks(legs[1].right, atBarrier).Scale(legs[1].coef)).
		Add(DigitalGreeks(legs[2].right, atBarrier, 1).Scale(legs[2].coef * math.Abs(in.Strike-b.Level)))
	if b.Rebate != 0 {
		g = g.Add(DigitalGreeks(rebateRight(b), atBarrier, b.Rebate))
	}
	return g
}
