package finance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/derivkit/algorithm/sim"
	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/xerrors"
)

var reference = Inputs{Spot: 100, Strike: 120, Maturity: 1, Rate: 0.05, Dividend: 0.035, Volatility: 0.2}

// central 对 f 做中心差分。
func central(f func(float64) float64, x, h float64) float64 {
	return (f(x+h) - f(x-h)) / (2 * h)
}

func second(f func(float64) float64, x, h float64) float64 {
	return (f(x+h) - 2*f(x) + f(x-h)) / (h * h)
}

type bumpable func(in Inputs) float64

// numericGreeks 对任意定价函数做数值微分，用于核对闭式敏感度。
func numericGreeks(price bumpable, in Inputs) Greeks {
	at := func(mut func(*Inputs, float64)) func(float64) float64 {
		return func(v float64) float64 {
			x := in
			mut(&x, v)
			return price(x)
		}
	}
	spot := at(func(x *Inputs, v float64) { x.Spot = v })
	return Greeks{
		Delta: central(spot, in.Spot, 1e-3),
		Gamma: second(spot, in.Spot, 1e-2),
		Vega:  central(at(func(x *Inputs, v float64) { x.Volatility = v }), in.Volatility, 1e-5),
		Theta: -central(at(func(x *Inputs, v float64) { x.Maturity = v }), in.Maturity, 1e-5),
		Rho:   central(at(func(x *Inputs, v float64) { x.Rate = v }), in.Rate, 1e-5),
	}
}

func assertGreeksClose(t *testing.T, want, got Greeks, tol float64) {
	t.Helper()
	assert.InDelta(t, want.Delta, got.Delta, tol, "delta")
	assert.InDelta(t, want.Gamma, got.Gamma, tol, "gamma")
	assert.InDelta(t, want.Vega, got.Vega, tol, "vega")
	assert.InDelta(t, want.Theta, got.Theta, tol, "theta")
	assert.InDelta(t, want.Rho, got.Rho, tol, "rho")
}

func TestReferenceScenario(t *testing.T) {
	assert.InDelta(t, 2.358148, VanillaPrice(contract.Call, reference), 1e-6)
	assert.InDelta(t, 19.945138, VanillaPrice(contract.Put, reference), 1e-6)
	assert.InDelta(t, 0.222746, VanillaGreeks(contract.Call, reference).Delta, 1e-6)
	assert.InDelta(t, -0.742859, VanillaGreeks(contract.Put, reference).Delta, 1e-6)
}

func TestPutCallParity(t *testing.T) {
	for _, k := range []float64{60, 100, 120, 180} {
		in := reference
		in.Strike = k
		lhs := VanillaPrice(contract.Call, in) - VanillaPrice(contract.Put, in)
		rhs := in.Spot*math.Exp(-in.Dividend*in.Maturity) - k*math.Exp(-in.Rate*in.Maturity)
		assert.InDelta(t, rhs, lhs, 1e-10, "strike %g", k)
	}
}

func TestVanillaGreeksMatchFiniteDifferences(t *testing.T) {
	for _, right := range []contract.Right{contract.Call, contract.Put} {
		price := func(in Inputs) float64 { return VanillaPrice(right, in) }
		assertGreeksClose(t, numericGreeks(price, reference), VanillaGreeks(right, reference), 1e-4)
	}
}

func TestDigital(t *testing.T) {
	assert.InDelta(t, 1.659707, DigitalPrice(contract.Call, reference, 10), 1e-6)

	for _, k := range []float64{50, 100, 120, 200} {
		in := reference
		in.Strike = k
		c := DigitalPrice(contract.Call, in, 10)
		p := DigitalPrice(contract.Put, in, 10)
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 10.0)
		assert.InDelta(t, 10*math.Exp(-in.Rate*in.Maturity), c+p, 1e-10)
	}

	for _, right := range []contract.Right{contract.Call, contract.Put} {
		price := func(in Inputs) float64 { return DigitalPrice(right, in, 10) }
		assertGreeksClose(t, numericGreeks(price, reference), DigitalGreeks(right, reference, 10), 1e-4)
	}
}

func TestQuantoGreeksMatchFiniteDifferences(t *testing.T) {
	in := QuantoInputs{Inputs: reference, ForeignRate: 0.03, FXVolatility: 0.1, Correlation: -0.4}
	for _, right := range []contract.Right{contract.Call, contract.Put} {
		g := QuantoPriceGreeks(right, in)
		price := func(x Inputs) float64 {
			q := in
			q.Inputs = x
			return QuantoPrice(right, q)
		}
		assertGreeksClose(t, numericGreeks(price, in.Inputs), g.Greeks, 1e-4)

		along := func(mut func(*QuantoInputs, float64)) func(float64) float64 {
			return func(v float64) float64 {
				q := in
				mut(&q, v)
				return QuantoPrice(right, q)
			}
		}
		assert.InDelta(t, central(along(func(q *QuantoInputs, v float64) { q.FXVolatility = v }), in.FXVolatility, 1e-6), g.VegaFX, 1e-4)
		assert.InDelta(t, central(along(func(q *QuantoInputs, v float64) { q.ForeignRate = v }), in.ForeignRate, 1e-6), g.RhoForeign, 1e-4)
		assert.InDelta(t, central(along(func(q *QuantoInputs, v float64) { q.Correlation = v }), in.Correlation, 1e-6), g.RhoCorrelation, 1e-4)
	}
}

func TestQuantoWithoutCouplingIsBlackScholes(t *testing.T) {
	// ρ=0 且 r_f=r_d 时退化为普通期权。
	in := QuantoInputs{Inputs: reference, ForeignRate: reference.Rate, FXVolatility: 0.15}
	assert.InDelta(t, VanillaPrice(contract.Call, reference), QuantoPrice(contract.Call, in), 1e-12)
}

func TestBarrierInPlusOutIsVanilla(t *testing.T) {
	for _, right := range []contract.Right{contract.Call, contract.Put} {
		for _, dir := range []contract.Direction{contract.Up, contract.Down} {
			for _, level := range []float64{90, 110, 130} {
				if dir.Crossed(reference.Spot, level) {
					continue
				}
				in := contract.BarrierTerms{Level: level, Direction: dir, Knock: contract.In, Rebate: 2}
				out := in
				out.Knock = contract.Out

				sum := BarrierPrice(right, reference, in) + BarrierPrice(right, reference, out)
				want := VanillaPrice(right, reference) + 2*math.Exp(-reference.Rate*reference.Maturity)
				assert.InDelta(t, want, sum, 1e-10, "%s %s %g", right, dir, level)

				g := BarrierGreeks(right, reference, in).Add(BarrierGreeks(right, reference, out))
				v := VanillaGreeks(right, reference)
				assert.InDelta(t, v.Delta, g.Delta, 1e-10)
				assert.InDelta(t, v.Vega, g.Vega, 1e-10)
			}
		}
	}
}

func TestBarrierGreeksMatchFiniteDifferences(t *testing.T) {
	b := contract.BarrierTerms{Level: 130, Direction: contract.Up, Knock: contract.Out, Rebate: 1}
	in := reference
	in.Strike = 110
	price := func(x Inputs) float64 { return BarrierPrice(contract.Call, x, b) }
	assertGreeksClose(t, numericGreeks(price, in), BarrierGreeks(contract.Call, in, b), 1e-4)
}

func TestBarrierPricesStayNonNegative(t *testing.T) {
	b := contract.BarrierTerms{Level: 90, Direction: contract.Down, Knock: contract.Out}
	for _, k := range []float64{80, 95, 120} {
		in := reference
		in.Strike = k
		assert.GreaterOrEqual(t, BarrierPrice(contract.Put, in, b), 0.0)
		assert.GreaterOrEqual(t, BarrierPrice(contract.Call, in, b), 0.0)
	}
}

func TestImpliedVolatilityRoundTrip(t *testing.T) {
	for _, vol := range []float64{0.05, 0.2, 0.6, 1.5} {
		for _, right := range []contract.Right{contract.Call, contract.Put} {
			in := reference
			in.Volatility = vol
			price := VanillaPrice(right, in)
			got, err := ImpliedVolatility(right, in, price)
			require.NoError(t, err)
			assert.InDelta(t, vol, got, 1e-6, "%s vol %g", right, vol)
		}
	}

	_, err := ImpliedVolatility(contract.Call, reference, 1000)
	assert.True(t, xerrors.IsValidation(err))
	assert.ErrorIs(t, err, xerrors.ErrPriceOutOfBounds)
}

func TestPolyFitRecoversPolynomial(t *testing.T) {
	x := make([]float64, 20)
	y := make([]float64, 20)
	for i := range x {
		x[i] = -1 + 0.1*float64(i)
		y[i] = 2 - 3*x[i] + 0.5*x[i]*x[i]*x[i]
	}
	poly, err := PolyFit(x, y, 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, -3, 0, 0.5}, []float64(poly), 1e-9)
	assert.InDeltaSlice(t, []float64{-3, 0, 1.5}, []float64(poly.Derivative()), 1e-9)

	_, err = PolyFit(x[:2], y[:2], 3)
	assert.True(t, xerrors.IsModel(err))
}

func TestLSMAmericanPut(t *testing.T) {
	p := sim.Params{Spot: 100, Maturity: 1, Rate: 0.05, Volatility: 0.2}
	paths, err := sim.Simulate(p, 20000, 50, 11)
	require.NoError(t, err)

	put := func(s float64) float64 { return math.Max(100-s, 0) }
	res, err := NewLSMPricer(3).ComputePrice(paths.Prices, put, p.Rate, paths.Dt)
	require.NoError(t, err)

	european := VanillaPrice(contract.Put, Inputs{Spot: 100, Strike: 100, Maturity: 1, Rate: 0.05, Volatility: 0.2})
	// 二叉树 500 步的美式看跌约为 6.09。
	assert.Greater(t, res.Price, european)
	assert.InDelta(t, 6.09, res.Price, 0.15)
	assert.Greater(t, res.StdErr, 0.0)
}
