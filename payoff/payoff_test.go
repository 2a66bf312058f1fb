package payoff

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/derivkit/algorithm/sim"
	"github.com/wyfcoding/derivkit/contract"
)

func TestEuropean(t *testing.T) {
	path := []float64{100, 105, 120}
	call := European{Right: contract.Call, Strike: 110}
	put := European{Right: contract.Put, Strike: 110}

	assert.Equal(t, 10.0, call.Payoff(path))
	assert.Equal(t, 0.0, put.Payoff(path))
	assert.InDelta(t, 1.2, call.PathwiseDelta(path), 1e-12)
	assert.Equal(t, 0.0, put.PathwiseDelta(path))
}

func TestAsianObservationGrid(t *testing.T) {
	c := contract.Contract{Category: contract.Asian, Right: contract.Call, Strike: 100, Maturity: 1,
		Asian: contract.AsianTerms{Frequency: contract.Monthly}}
	a := NewAsian(c, 100)
	assert.Equal(t, []int{0, 8, 16, 25, 33, 41, 50, 58, 66, 75, 83, 91}, a.Indices)

	c.Asian.Frequency = contract.Daily
	assert.Len(t, NewAsian(c, 50).Indices, 50)

	c.Maturity = 0.01
	c.Asian.Frequency = contract.Monthly
	assert.Equal(t, []int{0}, NewAsian(c, 50).Indices)
}

func TestAsianAverages(t *testing.T) {
	path := []float64{100, 80, 125, 90}
	arith := Asian{Right: contract.Call, Strike: 90, Averaging: contract.Arithmetic, Indices: []int{0, 1, 2}}
	geo := arith
	geo.Averaging = contract.Geometric

	assert.InDelta(t, 11.666666, arith.Payoff(path), 1e-6)
	assert.InDelta(t, 10, geo.Payoff(path), 1e-9)
	assert.InDelta(t, 1.0, geo.PathwiseDelta(path), 1e-9)
}

func TestLookback(t *testing.T) {
	path := []float64{100, 120, 80, 110}
	cases := []struct {
		right contract.Right
		kind  contract.StrikeType
		want  float64
		delta float64
	}{
		{contract.Call, contract.Fixed, 20, 1.2},
		{contract.Put, contract.Fixed, 20, -0.8},
		{contract.Call, contract.Floating, 30, 0.3},
		{contract.Put, contract.Floating, 10, 0.1},
	}
	for _, tc := range cases {
		l := Lookback{Right: tc.right, Strike: 100, StrikeType: tc.kind}
		assert.InDelta(t, tc.want, l.Payoff(path), 1e-12, "%s %s", tc.right, tc.kind)
		assert.InDelta(t, tc.delta, l.PathwiseDelta(path), 1e-12, "%s %s", tc.right, tc.kind)
	}
}

func TestBarrierMonitoring(t *testing.T) {
	upOut := Barrier{Right: contract.Call, Strike: 100, Terms: contract.BarrierTerms{Level: 120, Direction: contract.Up, Knock: contract.Out, Rebate: 2}}
	upIn := upOut
	upIn.Terms.Knock = contract.In

	touched := []float64{100, 121, 110}
	clean := []float64{100, 115, 110}
	assert.Equal(t, 2.0, upOut.Payoff(touched))
	assert.Equal(t, 10.0, upOut.Payoff(clean))
	assert.Equal(t, 10.0, upIn.Payoff(touched))
	assert.Equal(t, 2.0, upIn.Payoff(clean))

	// 期初价格本身即触及。
	assert.Equal(t, 2.0, upOut.Payoff([]float64{120, 110, 110}))
}

func TestAtSpot(t *testing.T) {
	base := contract.Contract{Right: contract.Call, Spot: 100, Strike: 90, Maturity: 1, Volatility: 0.2}

	vanilla := base
	assert.Equal(t, 10.0, AtSpot(vanilla))

	out := base
	out.Category = contract.Barrier
	out.Barrier = contract.BarrierTerms{Level: 95, Direction: contract.Down, Knock: contract.In, Rebate: 1}
	assert.Equal(t, 1.0, AtSpot(out))
	out.Barrier.Knock = contract.Out
	assert.Equal(t, 10.0, AtSpot(out))

	digital := base
	digital.Category = contract.Digital
	digital.Digital = contract.DigitalTerms{Payout: 5}
	assert.Equal(t, 5.0, AtSpot(digital))
	digital.Digital = contract.DigitalTerms{Payout: 5, HasBarrier: true, Level: 100, Direction: contract.Up}
	assert.Equal(t, 0.0, AtSpot(digital))

	floating := base
	floating.Category = contract.Lookback
	floating.Lookback.StrikeType = contract.Floating
	assert.Equal(t, 0.0, AtSpot(floating))

	auto := base
	auto.Category = contract.Autocall
	auto.Autocall = contract.AutocallTerms{Coupon: 4, CapitalBarrier: 60, EarlyBarrier: 100, CouponBarrier: 80, Percent: true}
	assert.Equal(t, 104.0, AtSpot(auto))
	auto.Autocall.EarlyBarrier = 120
	assert.Equal(t, 100.0, AtSpot(auto))

	strat, err := contract.NewStrategy(contract.Straddle, base, []float64{90, 110}, []float64{0.2, 0.2})
	require.NoError(t, err)
	assert.Equal(t, 20.0, AtSpot(strat))
}

func autocallContract(memory bool) contract.Contract {
	return contract.Contract{
		Category: contract.Autocall, Spot: 100, Maturity: 2, Volatility: 0.2,
		Autocall: contract.AutocallTerms{
			Coupon: 5, CapitalBarrier: 60, EarlyBarrier: 110, CouponBarrier: 90,
			Memory: memory, Frequency: contract.Annual,
		},
	}
}

func TestAutocallLifecycle(t *testing.T) {
	ctx := context.Background()
	a := NewAutocall(autocallContract(true), 2)
	require.Equal(t, 2, a.Observations())
	tally := a.NewTally()

	paths := map[string]struct {
		path []float64
		want float64
	}{
		"early redemption with coupon": {[]float64{100, 115, 90}, 105},
		"matures with two coupons":     {[]float64{100, 95, 100}, 110},
		"capital knock-in":             {[]float64{100, 80, 50}, 50},
		"memory coupon":                {[]float64{100, 80, 95}, 110},
	}
	for name, tc := range paths {
		v, err := a.Evaluate(ctx, tc.path, tally)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, v, 1e-12, name)
	}

	r := a.Report(tally, 9)
	assert.Equal(t, 4, r.Paths)
	assert.Equal(t, uint64(9), r.Seed)
	assert.NotEmpty(t, r.RunID)
	assert.InDelta(t, 93.75, r.Price, 1e-12)
	assert.InDelta(t, 0.25, r.CapitalLossProbability, 1e-12)
	assert.InDelta(t, 0.25, r.Observations[0].MaturityProbability, 1e-12)
	assert.InDelta(t, 0.75, r.Observations[1].MaturityProbability, 1e-12)
	assert.InDelta(t, 0.50, r.Observations[0].CouponProbability, 1e-12)
	assert.InDelta(t, 0.50, r.Observations[1].CouponProbability, 1e-12)
	assert.InDelta(t, 0.25*1+0.75*2, r.ExpectedMaturity, 1e-12)
	assert.InDelta(t, 5.0/4, r.AverageCoupons, 1e-12)

	rows := r.Rows()
	assert.Equal(t, "25", rows[0].MaturityProbability.String())
	assert.Equal(t, "75", rows[1].MaturityProbability.String())
}

func TestRoundedUpObservationFallsOnMaturity(t *testing.T) {
	c := autocallContract(false)
	c.Maturity, c.Rate = 0.9, 0.05
	a := NewAutocall(c, 9)
	require.Equal(t, 1, a.Observations())

	path := []float64{100, 101, 102, 103, 104, 105, 106, 108, 112, 115}
	tally := a.NewTally()
	v, err := a.Evaluate(context.Background(), path, tally)
	require.NoError(t, err)
	assert.InDelta(t, 105.0, v, 1e-12)

	r := a.Report(tally, 1)
	assert.InDelta(t, 0.9, r.Observations[0].Time, 1e-12)
	assert.InDelta(t, 0.9, r.ExpectedMaturity, 1e-12)
	assert.InDelta(t, 105*math.Exp(-0.05*0.9), r.Price, 1e-9)
}

func TestAthenaUsesEarlyBarrierForCoupons(t *testing.T) {
	c := autocallContract(false)
	c.Autocall.Kind = contract.Athena
	a := NewAutocall(c, 2)
	v, err := a.Evaluate(context.Background(), []float64{100, 95, 100}, a.NewTally())
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)
}

func TestMemoryPaysAtLeastAsMuch(t *testing.T) {
	ctx := context.Background()
	c := autocallContract(false)
	c.Maturity, c.Rate, c.Dividend = 5, 0.02, 0.035
	c.Autocall.Frequency = contract.SemiAnnual
	c.Autocall.EarlyBarrier, c.Autocall.CouponBarrier, c.Autocall.CapitalBarrier = 140, 95, 65

	paths, err := sim.Simulate(sim.Params{Spot: 100, Maturity: 5, Rate: 0.02, Dividend: 0.035, Volatility: 0.2}, 2000, 100, 17)
	require.NoError(t, err)

	run := func(memory bool) *AutocallReport {
		c.Autocall.Memory = memory
		a := NewAutocall(c, 100)
		tally := a.NewTally()
		for i := range paths.Len() {
			_, err := a.Evaluate(ctx, paths.Path(i), tally)
			require.NoError(t, err)
		}
		return a.Report(tally, 17)
	}
	off, on := run(false), run(true)
	assert.GreaterOrEqual(t, on.AverageCoupons, off.AverageCoupons)
	assert.GreaterOrEqual(t, on.Price, off.Price)

	total := 0.0
	for _, o := range on.Observations {
		total += o.MaturityProbability
	}
	assert.InDelta(t, 1, total, 1e-12)
}
