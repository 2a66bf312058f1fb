package greeks

import (
	"context"
	"math"

	"github.com/wyfcoding/derivkit/algorithm/sim"
	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/payoff"
	"github.com/wyfcoding/derivkit/pricer"
)

// MonteCarlo 单次流式模拟同时给出全部敏感度及其标准误。
// 具备路径导数的收益使用路径导数估计 Delta。欧式收益只经由 S_T 依赖期初价格，Gamma 用路径导数乘以首步得分；
// 亚式与回望收益直接读取 path[0]，Gamma 取路径导数在共同随机数下的中心差分。
// 障碍与数字期权改用首步似然比。Vega、Rho、Theta 均为似然比估计。
// spotShift 路径导数中心差分的相对扰动。GBM 路径关于 S0 一次齐次，整条路径乘以 1±ε 即是同一组冲击下的扰动路径。
const spotShift = 0.01

type MonteCarlo struct {
	Paths     int
	Steps     int
	BatchSize int
	Seed      uint64
}

// Estimate 蒙特卡洛敏感度估计。
type Estimate struct {
	Values Vector `json:"values"`
	StdErr Vector `json:"std_err"`
	Paths  int    `json:"paths"`
	Seed   uint64 `json:"seed"`
}

func (m *MonteCarlo) Greeks(ctx context.Context, c contract.Contract) (Vector, error) {
	est, err := m.Estimate(ctx, c)
	if err != nil {
		return nil, err
	}
	return est.Values, nil
}

// Estimate 返回敏感度及标准误。组合策略的标准误按各腿独立合并。
func (m *MonteCarlo) Estimate(ctx context.Context, c contract.Contract) (Estimate, error) {
	if c.Category == contract.Autocall || c.Exercise == contract.American {
		return Estimate{}, unsupported("monte_carlo", c)
	}
	switch {
	case c.Category == contract.Strategy:
		return m.sumLegs(ctx, c)
	case c.KnockedOut():
		return Estimate{Values: Zero(c), StdErr: Zero(c)}, nil
	case c.KnockedIn():
		c.Category = contract.Vanilla
	}

	eval, ok := payoff.For(c, m.Steps)
	if !ok {
		return Estimate{}, unsupported("monte_carlo", c)
	}
	s, err := sim.New(pricer.SimParams(c), m.Steps, sim.WithSeed(m.Seed))
	if err != nil {
		return Estimate{}, err
	}

	w := newWeights(c, s)
	pathwise, hasPathwise := eval.(payoff.Pathwise)
	_, terminal := eval.(payoff.European)
	up, down := make([]float64, m.Steps+1), make([]float64, m.Steps+1)
	keys := Keys(c)
	moments := make(map[string]*sim.Moments, len(keys))
	samples := make(map[string][]float64, len(keys))
	for _, k := range keys {
		moments[k] = &sim.Moments{}
	}

	err = pricer.Stream(s, m.Paths, m.BatchSize, func(p *sim.Paths) error {
		for _, k := range keys {
			samples[k] = samples[k][:0]
		}
		for i := range p.Len() {
			path, z := p.Path(i), p.Shock(i)
			v := w.disc * eval.Payoff(path)
			sc := w.scores(z)

			var delta, gamma float64
			if hasPathwise {
				d := w.disc * pathwise.PathwiseDelta(path)
				delta = d
				if terminal {
					gamma = d * (z[0]/w.volSqrtDt - 1) / w.spot
				} else {
					hi := pathwise.PathwiseDelta(scaled(up, path, 1+spotShift))
					lo := pathwise.PathwiseDelta(scaled(down, path, 1-spotShift))
					gamma = w.disc * (hi - lo) / (2 * spotShift * w.spot)
				}
			} else {
				delta = v * z[0] / (w.spot * w.volSqrtDt)
				gamma = v * ((z[0]*z[0]-1)/(w.spot*w.spot*w.vol*w.vol*w.dt) - z[0]/(w.spot*w.spot*w.volSqrtDt))
			}
			dMu := v * sc.drift

			samples[Delta] = append(samples[Delta], delta)
			samples[Gamma] = append(samples[Gamma], gamma)
			samples[Vega] = append(samples[Vega], v*sc.vol-dMu*w.vegaShift)
			samples[Theta] = append(samples[Theta], -v*(-w.rate+w.logDrift*sc.drift/w.maturity+sc.time))
			if w.quanto {
				samples[Rho] = append(samples[Rho], -w.maturity*v)
				samples[VegaFX] = append(samples[VegaFX], -dMu*w.correlation*w.vol)
				samples[RhoForeign] = append(samples[RhoForeign], dMu)
				samples[RhoCorrelation] = append(samples[RhoCorrelation], -dMu*w.vol*w.fxVol)
			} else {
				samples[Rho] = append(samples[Rho], dMu-w.maturity*v)
			}
		}
		for _, k := range keys {
			moments[k].Merge(samples[k])
		}
		return nil
	})
	if err != nil {
		return Estimate{}, err
	}

	out := Estimate{Values: make(Vector, len(keys)), StdErr: make(Vector, len(keys)), Seed: s.Seed()}
	for _, k := range keys {
		out.Values[k] = moments[k].Mean()
		out.StdErr[k] = moments[k].StdErr()
	}
	out.Paths = moments[Delta].Count()
	return out, nil
}

func (m *MonteCarlo) sumLegs(ctx context.Context, c contract.Contract) (Estimate, error) {
	out := Estimate{Values: Zero(c), StdErr: Zero(c)}
	variance := Zero(c)
	for i, l := range c.Legs {
		leg, err := m.Estimate(ctx, c.Leg(i))
		if err != nil {
			return Estimate{}, err
		}
		out.Values.AddScaled(leg.Values, l.Weight)
		for k, se := range leg.StdErr {
			variance[k] += l.Weight * l.Weight * se * se
		}
		out.Paths += leg.Paths
		out.Seed = leg.Seed
	}
	for k, v := range variance {
		out.StdErr[k] = math.Sqrt(v)
	}
	return out, nil
}

// scaled 把 path 的每个点乘以 f 写入 dst。
func scaled(dst, path []float64, f float64) []float64 {
	for j, s := range path {
		dst[j] = s * f
	}
	return dst[:len(path)]
}

// weights 似然比估计所需的常量。
type weights struct {
	spot, vol, dt, sqrtDt, volSqrtDt float64
	rate, maturity, logDrift, disc   float64

	quanto             bool
	correlation, fxVol float64
	vegaShift          float64 // ∂μ/∂σ 的相反数：ρ·σ_fx
}

func newWeights(c contract.Contract, s *sim.Simulator) weights {
	p := s.Params()
	dt := s.Dt()
	w := weights{
		spot:      p.Spot,
		vol:       p.Volatility,
		dt:        dt,
		sqrtDt:    math.Sqrt(dt),
		volSqrtDt: p.Volatility * math.Sqrt(dt),
		rate:      p.Rate,
		maturity:  p.Maturity,
		logDrift:  p.Rate - p.Dividend - 0.5*p.Volatility*p.Volatility,
		disc:      math.Exp(-p.Rate * p.Maturity),
	}
	if c.Category == contract.Quanto {
		w.quanto = true
		w.correlation = c.Quanto.Correlation
		w.fxVol = c.Quanto.FXVolatility
		w.vegaShift = w.correlation * w.fxVol
	}
	return w
}

// scoreSet 单条路径对漂移、波动率与期限的得分。
type scoreSet struct {
	drift float64 // W_T/σ
	vol   float64 // Σ((Z²-1)/σ - √dt·Z)
	time  float64 // Σ(Z²-1)/(2T)
}

func (w weights) scores(z []float64) scoreSet {
	var sumZ, sumZ2m1 float64
	for _, x := range z {
		sumZ += x
		sumZ2m1 += x*x - 1
	}
	wT := w.sqrtDt * sumZ
	return scoreSet{
		drift: wT / w.vol,
		vol:   sumZ2m1/w.vol - wT,
		time:  sumZ2m1 / (2 * w.maturity),
	}
}
