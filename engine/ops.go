package engine

import (
	"context"

	"github.com/wyfcoding/derivkit/algorithm/finance"
	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/greeks"
	"github.com/wyfcoding/derivkit/payoff"
	"github.com/wyfcoding/derivkit/pricer"
	"github.com/wyfcoding/derivkit/tracing"
	"github.com/wyfcoding/derivkit/xerrors"
)

// Price 按合约类别的默认方法定价。
func (e *Engine) Price(ctx context.Context, c contract.Contract) (float64, error) {
	est, err := e.PriceWith(ctx, c, pricer.Route(c))
	return est.Value, err
}

// PriceWith 使用指定方法定价，返回包含标准误的估值。类别与方法不匹配时返回 ValidationError。
func (e *Engine) PriceWith(ctx context.Context, c contract.Contract, m pricer.Method) (pricer.Estimate, error) {
	conf := e.Settings()
	cl := call{op: "price", method: m.String(), c: c, conf: conf}
	return observe(ctx, e, cl, func(ctx context.Context) (pricer.Estimate, error) {
		return cached(ctx, e, cl, m, func(ctx context.Context) (pricer.Estimate, error) {
			est, err := pricerFor(conf, m).Price(ctx, c)
			if err != nil {
				return pricer.Estimate{}, err
			}
			e.metrics.AddPaths(est.Paths)
			return est, nil
		})
	})
}

// Greeks 按合约类别的默认方法计算敏感度。自动赎回票据返回 ValidationError，请改用 SimulateAutocall。
func (e *Engine) Greeks(ctx context.Context, c contract.Contract) (greeks.Vector, error) {
	return e.GreeksWith(ctx, c, pricer.Route(c))
}

// GreeksWith 使用指定方法计算敏感度：解析偏导、二叉树有限差分或蒙特卡洛估计。
func (e *Engine) GreeksWith(ctx context.Context, c contract.Contract, m pricer.Method) (greeks.Vector, error) {
	conf := e.Settings()
	cl := call{op: "greeks", method: m.String(), c: c, conf: conf}
	return observe(ctx, e, cl, func(ctx context.Context) (greeks.Vector, error) {
		return cached(ctx, e, cl, m, func(ctx context.Context) (greeks.Vector, error) {
			return greeksFor(conf, m, c).Greeks(ctx, c)
		})
	})
}

// MonteCarloGreeks 蒙特卡洛敏感度及其标准误。
func (e *Engine) MonteCarloGreeks(ctx context.Context, c contract.Contract) (greeks.Estimate, error) {
	conf := e.Settings()
	cl := call{op: "greeks_mc", method: pricer.MonteCarlo.String(), c: c, conf: conf}
	return observe(ctx, e, cl, func(ctx context.Context) (greeks.Estimate, error) {
		mc := conf.MonteCarlo
		eng := &greeks.MonteCarlo{Paths: mc.GreekPaths, Steps: mc.GreekSteps, BatchSize: mc.BatchSize, Seed: mc.Seed}
		est, err := eng.Estimate(ctx, c)
		if err != nil {
			return greeks.Estimate{}, err
		}
		e.metrics.AddPaths(est.Paths)
		return est, nil
	})
}

// Payoff 返回标的维持当前价格至到期时的收益。
func (e *Engine) Payoff(c contract.Contract) (float64, error) {
	cl := call{op: "payoff", method: "none", c: c, conf: e.Settings()}
	return observe(context.Background(), e, cl, func(context.Context) (float64, error) {
		return payoff.AtSpot(c), nil
	})
}

// SimulateAutocall 模拟自动赎回票据，返回各观察日的到期与票息概率及汇总指标。
func (e *Engine) SimulateAutocall(ctx context.Context, c contract.Contract) (*payoff.AutocallReport, error) {
	conf := e.Settings()
	cl := call{op: "simulate_autocall", method: pricer.MonteCarlo.String(), c: c, conf: conf}
	return observe(ctx, e, cl, func(ctx context.Context) (*payoff.AutocallReport, error) {
		mc := pricerFor(conf, pricer.MonteCarlo).(*pricer.MonteCarloPricer)
		r, err := mc.SimulateAutocall(ctx, c)
		if err != nil {
			return nil, err
		}
		e.metrics.AddPaths(r.Paths)
		e.logger.InfoContext(ctx, "autocall simulated", "run_id", r.RunID, "seed", r.Seed, "paths", r.Paths)
		return r, nil
	})
}

// Profile 扫描单个参数并返回平滑后的价格曲线或其导数。蒙特卡洛路由的合约在各网格点共用同一种子。
func (e *Engine) Profile(ctx context.Context, c contract.Contract, param contract.Param, order greeks.Order) (*greeks.Curve, error) {
	conf := e.Settings()
	m := pricer.Route(c)
	cl := call{op: "profile", method: m.String(), c: c, conf: conf}
	return observe(ctx, e, cl, func(ctx context.Context) (*greeks.Curve, error) {
		p := pricerFor(conf, m)
		if mc, ok := p.(*pricer.MonteCarloPricer); ok {
			mc.Seed = commonSeed(mc.Seed)
		}
		curve, err := greeks.NewProfiler(p, conf.Profile).Profile(ctx, c, param, order)
		if err != nil {
			return nil, err
		}
		for _, w := range curve.Warnings {
			e.metrics.Warning(string(w.Kind), w.Param)
			tracing.Warning(ctx, string(w.Kind), w.Param, w.Message)
		}
		return curve, nil
	})
}

// ImpliedVolatility 反解欧式普通期权的 Black-Scholes 隐含波动率，合约自身的波动率不参与计算。
func (e *Engine) ImpliedVolatility(ctx context.Context, c contract.Contract, price float64) (float64, error) {
	cl := call{op: "implied_volatility", method: pricer.Analytic.String(), c: c, conf: e.Settings()}
	return observe(ctx, e, cl, func(context.Context) (float64, error) {
		if c.Category != contract.Vanilla || c.Exercise != contract.European {
			return 0, xerrors.ErrUnsupportedMethod.Derive("implied volatility needs a european vanilla, got %s %s", c.Exercise, c.Category)
		}
		return finance.ImpliedVolatility(c.Right, finance.InputsOf(c), price)
	})
}
