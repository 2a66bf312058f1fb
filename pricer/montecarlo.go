package pricer

import (
	"context"
	"math"

	"github.com/wyfcoding/derivkit/algorithm/finance"
	"github.com/wyfcoding/derivkit/algorithm/sim"
	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/payoff"
	"github.com/wyfcoding/derivkit/xerrors"
)

// MonteCarloPricer 分批流式模拟的蒙特卡洛定价器。美式普通期权使用 Longstaff-Schwartz 回归。
type MonteCarloPricer struct {
	Paths     int
	Steps     int
	BatchSize int
	Seed      uint64 // 0 表示每次调用使用新的随机种子
	LSMDegree int
}

func (*MonteCarloPricer) Method() Method { return MonteCarlo }

// SimParams 返回合约在风险中性测度下的模拟参数，双币种期权使用等效股息。
func SimParams(c contract.Contract) sim.Params {
	p := sim.Params{Spot: c.Spot, Maturity: c.Maturity, Rate: c.Rate, Dividend: c.Dividend, Volatility: c.Volatility}
	if c.Category == contract.Quanto {
		p.Dividend = finance.QuantoInputsOf(c).EffectiveDividend()
	}
	return p
}

// Stream 按批次消费模拟器，直到生成 total 条路径。
func Stream(s *sim.Simulator, total, batchSize int, visit func(*sim.Paths) error) error {
	if total <= 0 {
		return xerrors.ErrNonPositiveCount.Derive("paths=%d", total)
	}
	if batchSize <= 0 {
		batchSize = total
	}
	for done := 0; done < total; {
		n := min(batchSize, total-done)
		paths, err := s.Next(n)
		if err != nil {
			return err
		}
		if err := visit(paths); err != nil {
			return err
		}
		done += n
	}
	return nil
}

func (m *MonteCarloPricer) Price(ctx context.Context, c contract.Contract) (Estimate, error) {
	switch c.Category {
	case contract.Strategy:
		return sumLegs(ctx, m, c)
	case contract.Autocall:
		r, err := m.SimulateAutocall(ctx, c)
		if err != nil {
			return Estimate{}, err
		}
		return Estimate{Value: r.Price, StdErr: r.StdErr, Paths: r.Paths, Seed: r.Seed}, nil
	case contract.Barrier:
		if c.Exercise == contract.American {
			return Estimate{}, unsupported(MonteCarlo, c)
		}
		if c.KnockedOut() {
			return Estimate{Value: c.Barrier.Rebate}, nil
		}
	case contract.Digital:
		if c.KnockedOut() {
			return Estimate{}, nil
		}
	case contract.Vanilla:
		if c.Exercise == contract.American {
			return m.priceAmerican(c)
		}
	}

	eval, ok := payoff.For(c, m.Steps)
	if !ok {
		return Estimate{}, unsupported(MonteCarlo, c)
	}

	s, err := sim.New(SimParams(c), m.Steps, sim.WithSeed(m.Seed))
	if err != nil {
		return Estimate{}, err
	}
	disc := math.Exp(-c.Rate * c.Maturity)
	var moments sim.Moments
	values := make([]float64, 0, max(m.BatchSize, 0))
	err = Stream(s, m.Paths, m.BatchSize, func(p *sim.Paths) error {
		values = values[:0]
		for i := range p.Len() {
			values = append(values, disc*eval.Payoff(p.Path(i)))
		}
		moments.Merge(values)
		return nil
	})
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Value: moments.Mean(), StdErr: moments.StdErr(), Paths: moments.Count(), Seed: s.Seed()}, nil
}

// priceAmerican 回归需要全部路径同时在内存中，因此不分批。
func (m *MonteCarloPricer) priceAmerican(c contract.Contract) (Estimate, error) {
	s, err := sim.New(SimParams(c), m.Steps, sim.WithSeed(m.Seed))
	if err != nil {
		return Estimate{}, err
	}
	paths, err := s.Next(m.Paths)
	if err != nil {
		return Estimate{}, err
	}
	intrinsic := func(x float64) float64 { return c.Right.Intrinsic(x, c.Strike) }
	res, err := finance.NewLSMPricer(m.LSMDegree).ComputePrice(paths.Prices, intrinsic, c.Rate, paths.Dt)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Value: res.Price, StdErr: res.StdErr, Paths: m.Paths, Seed: s.Seed()}, nil
}

// SimulateAutocall 逐路径运行自动赎回状态机，返回概率表与汇总指标。
func (m *MonteCarloPricer) SimulateAutocall(ctx context.Context, c contract.Contract) (*payoff.AutocallReport, error) {
	if c.Category != contract.Autocall {
		return nil, unsupported(MonteCarlo, c)
	}
	s, err := sim.New(SimParams(c), m.Steps, sim.WithSeed(m.Seed))
	if err != nil {
		return nil, err
	}
	a := payoff.NewAutocall(c, m.Steps)
	tally := a.NewTally()
	err = Stream(s, m.Paths, m.BatchSize, func(p *sim.Paths) error {
		for i := range p.Len() {
			if _, err := a.Evaluate(ctx, p.Path(i), tally); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a.Report(tally, s.Seed()), nil
}
