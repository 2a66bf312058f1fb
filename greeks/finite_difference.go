package greeks

import (
	"context"
	"math"

	"github.com/sourcegraph/conc/pool"

	"github.com/wyfcoding/derivkit/config"
	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/pricer"
)

// correlationBump 相关系数的绝对扰动幅度，两端按 [-1, 1] 截断。
const correlationBump = 0.01

// FiniteDifference 对任意定价器做扰动重定价。默认搭配二叉树定价器，用于美式合约。
// Delta、Rho 与双币种的外币利率、相关系数取中心差分，Gamma 取二阶中心差分，Vega 与 Theta 取单侧差分。
type FiniteDifference struct {
	Pricer      pricer.Pricer
	Bumps       config.BumpConfig
	Parallelism int
}

// NewFiniteDifference 创建有限差分引擎。
func NewFiniteDifference(p pricer.Pricer, bumps config.BumpConfig, parallelism int) *FiniteDifference {
	return &FiniteDifference{Pricer: p, Bumps: bumps, Parallelism: parallelism}
}

// bump 相对扰动，不低于绝对下限。
func bump(x, rel, floor float64) float64 {
	return math.Max(rel*math.Abs(x), floor)
}

// scenario 一次扰动重定价。
type scenario struct {
	c     contract.Contract
	price float64
}

func (f *FiniteDifference) Greeks(ctx context.Context, c contract.Contract) (Vector, error) {
	if c.Category == contract.Autocall {
		return nil, unsupported(f.Pricer.Method().String(), c)
	}
	if c.KnockedOut() {
		return Zero(c), nil
	}

	hS := bump(c.Spot, f.Bumps.SpotRel, f.Bumps.SpotFloor)
	hV := bump(c.Value(contract.ParamVolatility), f.Bumps.VolRel, f.Bumps.VolFloor)
	hR := bump(c.Rate, f.Bumps.RateRel, f.Bumps.RateFloor)
	dT := math.Min(1.0/365, c.Maturity/2)

	scen := []scenario{
		{c: c},
		{c: c.Bump(contract.ParamSpot, hS)},
		{c: c.Bump(contract.ParamSpot, -hS)},
		{c: c.Bump(contract.ParamVolatility, hV)},
		{c: c.Bump(contract.ParamRate, hR)},
		{c: c.Bump(contract.ParamRate, -hR)},
		{c: c.Bump(contract.ParamMaturity, -dT)},
	}

	var hFX, hRf, rhoUp, rhoDown float64
	quanto := c.Category == contract.Quanto
	if quanto {
		hFX = bump(c.Quanto.FXVolatility, f.Bumps.VolRel, f.Bumps.VolFloor)
		hRf = bump(c.Quanto.ForeignRate, f.Bumps.RateRel, f.Bumps.RateFloor)
		rhoUp = math.Min(c.Quanto.Correlation+correlationBump, 1)
		rhoDown = math.Max(c.Quanto.Correlation-correlationBump, -1)
		scen = append(scen,
			scenario{c: c.Bump(contract.ParamFXVolatility, hFX)},
			scenario{c: c.Bump(contract.ParamForeignRate, hRf)},
			scenario{c: c.Bump(contract.ParamForeignRate, -hRf)},
			scenario{c: c.With(contract.ParamCorrelation, rhoUp)},
			scenario{c: c.With(contract.ParamCorrelation, rhoDown)},
		)
	}

	if err := f.reprice(ctx, scen); err != nil {
		return nil, err
	}

	p0 := scen[0].price
	g := Vector{
		Delta: (scen[1].price - scen[2].price) / (2 * hS),
		Gamma: (scen[1].price - 2*p0 + scen[2].price) / (hS * hS),
		Vega:  (scen[3].price - p0) / hV,
		Rho:   (scen[4].price - scen[5].price) / (2 * hR),
		Theta: (scen[6].price - p0) / dT,
	}
	if quanto {
		g[VegaFX] = (scen[7].price - p0) / hFX
		g[RhoForeign] = (scen[8].price - scen[9].price) / (2 * hRf)
		g[RhoCorrelation] = (scen[10].price - scen[11].price) / (rhoUp - rhoDown)
	}
	return g, nil
}

// reprice 逐个或在有界协程池中并发完成各扰动场景的重定价。
func (f *FiniteDifference) reprice(ctx context.Context, scen []scenario) error {
	if f.Parallelism <= 1 {
		for i := range scen {
			est, err := f.Pricer.Price(ctx, scen[i].c)
			if err != nil {
				return err
			}
			scen[i].price = est.Value
		}
		return nil
	}

	p := pool.New().WithMaxGoroutines(f.Parallelism).WithErrors().WithFirstError()
	for i := range scen {
		p.Go(func() error {
			est, err := f.Pricer.Price(ctx, scen[i].c)
			if err != nil {
				return err
			}
			scen[i].price = est.Value
			return nil
		})
	}
	return p.Wait()
}
