package engine

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wyfcoding/derivkit/config"
	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/greeks"
	"github.com/wyfcoding/derivkit/metrics"
	"github.com/wyfcoding/derivkit/pricer"
	"github.com/wyfcoding/derivkit/xerrors"
)

func testConfig() *config.Config {
	conf := config.Default()
	conf.MonteCarlo.Paths = 20000
	conf.MonteCarlo.Steps = 20
	conf.MonteCarlo.GreekPaths = 20000
	conf.MonteCarlo.GreekSteps = 4
	conf.MonteCarlo.Seed = 42
	conf.Lattice.Steps = 300
	return conf
}

func newEngine(t *testing.T, conf *config.Config) (*Engine, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics("test")
	e, err := New(conf, WithMetrics(m))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, m
}

func reference(right contract.Right) contract.Contract {
	return contract.Contract{
		Category: contract.Vanilla, Right: right, Spot: 100, Strike: 120, Maturity: 1,
		Rate: 0.05, Dividend: 0.035, Volatility: 0.2,
	}
}

func autocall() contract.Contract {
	return contract.Contract{
		Category: contract.Autocall, Spot: 100, Maturity: 5, Rate: 0.02, Dividend: 0.035, Volatility: 0.2,
		Autocall: contract.AutocallTerms{
			Coupon: 5, CapitalBarrier: 65, EarlyBarrier: 140, CouponBarrier: 95,
			Percent: true, Memory: true, Frequency: contract.SemiAnnual,
		},
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	conf := config.Default()
	conf.MonteCarlo.Paths = 0
	_, err := New(conf)
	assert.True(t, xerrors.IsConfiguration(err))
}

func TestPriceReferenceScenario(t *testing.T) {
	e, m := newEngine(t, testConfig())
	ctx := context.Background()

	call, err := e.Price(ctx, reference(contract.Call))
	require.NoError(t, err)
	assert.InDelta(t, 2.358148, call, 1e-6)
	put, err := e.Price(ctx, reference(contract.Put))
	require.NoError(t, err)
	assert.InDelta(t, 19.945138, put, 1e-6)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("vanilla", "analytic", "price", "ok")))
}

func TestValidationRunsFirst(t *testing.T) {
	e, m := newEngine(t, testConfig())
	c := reference(contract.Call)
	c.Spot = 0

	_, err := e.Price(context.Background(), c)
	require.Error(t, err)
	assert.True(t, xerrors.IsValidation(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("vanilla", "analytic", "price", "error")))
	assert.Zero(t, testutil.ToFloat64(m.PathsSimulated))
}

func TestUnsupportedMethodPair(t *testing.T) {
	e, _ := newEngine(t, testConfig())
	c := reference(contract.Call)
	c.Category = contract.Asian
	c.Asian = contract.AsianTerms{Frequency: contract.Monthly}

	_, err := e.PriceWith(context.Background(), c, pricer.Lattice)
	assert.True(t, xerrors.IsValidation(err))
	_, err = e.GreeksWith(context.Background(), c, pricer.Analytic)
	assert.True(t, xerrors.IsValidation(err))
}

func TestRoutedMonteCarloCountsPaths(t *testing.T) {
	e, m := newEngine(t, testConfig())
	c := reference(contract.Call)
	c.Category = contract.Lookback
	c.Lookback = contract.LookbackTerms{StrikeType: contract.Floating}
	c.Strike = 0

	est, err := e.PriceWith(context.Background(), c, pricer.Route(c))
	require.NoError(t, err)
	assert.Positive(t, est.Value)
	assert.Equal(t, uint64(42), est.Seed)
	assert.Equal(t, 20000.0, testutil.ToFloat64(m.PathsSimulated))
}

func TestGreeksRouting(t *testing.T) {
	e, _ := newEngine(t, testConfig())
	ctx := context.Background()

	g, err := e.Greeks(ctx, reference(contract.Call))
	require.NoError(t, err)
	assert.InDelta(t, 0.222746, g[greeks.Delta], 1e-6)

	american := reference(contract.Put)
	american.Exercise = contract.American
	g, err = e.Greeks(ctx, american)
	require.NoError(t, err)
	assert.Less(t, g[greeks.Delta], -0.742859)

	_, err = e.Greeks(ctx, autocall())
	require.Error(t, err)
	assert.True(t, xerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "SimulateAutocall")
}

func TestMonteCarloGreeksCarryStdErr(t *testing.T) {
	e, _ := newEngine(t, testConfig())
	est, err := e.MonteCarloGreeks(context.Background(), reference(contract.Call))
	require.NoError(t, err)
	assert.InDelta(t, 0.222746, est.Values[greeks.Delta], 4*est.StdErr[greeks.Delta]+1e-3)
	assert.Positive(t, est.StdErr[greeks.Vega])
}

func TestCacheServesDeterministicResults(t *testing.T) {
	conf := testConfig()
	conf.Cache.Enabled = true
	e, m := newEngine(t, conf)
	ctx := context.Background()

	first, err := e.PriceWith(ctx, reference(contract.Call), pricer.Lattice)
	require.NoError(t, err)
	second, err := e.PriceWith(ctx, reference(contract.Call), pricer.Lattice)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))

	g1, err := e.Greeks(ctx, reference(contract.Put))
	require.NoError(t, err)
	g2, err := e.Greeks(ctx, reference(contract.Put))
	require.NoError(t, err)
	assert.Equal(t, g1, g2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
}

func TestUnseededMonteCarloIsNotCached(t *testing.T) {
	conf := testConfig()
	conf.Cache.Enabled = true
	conf.MonteCarlo.Seed = 0
	conf.MonteCarlo.Paths = 2000
	e, m := newEngine(t, conf)

	a, err := e.PriceWith(context.Background(), reference(contract.Call), pricer.MonteCarlo)
	require.NoError(t, err)
	b, err := e.PriceWith(context.Background(), reference(contract.Call), pricer.MonteCarlo)
	require.NoError(t, err)
	assert.NotEqual(t, a.Seed, b.Seed)
	assert.Zero(t, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Zero(t, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
}

func TestReloadSwapsSettings(t *testing.T) {
	e, _ := newEngine(t, testConfig())
	c := reference(contract.Call)

	next := testConfig()
	next.MonteCarlo.Paths = 1000
	e.Reload(next)
	est, err := e.PriceWith(context.Background(), c, pricer.MonteCarlo)
	require.NoError(t, err)
	assert.Equal(t, 1000, est.Paths)

	broken := testConfig()
	broken.MonteCarlo.BatchSize = 0
	e.Reload(broken)
	assert.Equal(t, 1000, e.Settings().MonteCarlo.Paths)
}

func TestPayoffAtSpot(t *testing.T) {
	e, _ := newEngine(t, testConfig())
	c := reference(contract.Put)
	got, err := e.Payoff(c)
	require.NoError(t, err)
	assert.Equal(t, 20.0, got)

	c.Category = contract.Barrier
	c.Barrier = contract.BarrierTerms{Level: 110, Direction: contract.Up, Knock: contract.In, Rebate: 1}
	got, err = e.Payoff(c)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestSimulateAutocallIsSeeded(t *testing.T) {
	conf := testConfig()
	conf.MonteCarlo.Paths = 4000
	e, _ := newEngine(t, conf)

	a, err := e.SimulateAutocall(context.Background(), autocall())
	require.NoError(t, err)
	b, err := e.SimulateAutocall(context.Background(), autocall())
	require.NoError(t, err)
	assert.Equal(t, a.Price, b.Price)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Len(t, a.Rows(), 10)
}

func TestProfileThroughEngine(t *testing.T) {
	conf := testConfig()
	conf.MonteCarlo.Seed = 0
	conf.MonteCarlo.Paths = 2000
	conf.Profile.Points = 12
	conf.Profile.Degree = 3
	e, _ := newEngine(t, conf)

	c := reference(contract.Call)
	c.Category = contract.Asian
	c.Asian = contract.AsianTerms{Frequency: contract.Monthly}
	curve, err := e.Profile(context.Background(), c, contract.ParamSpot, greeks.Slope)
	require.NoError(t, err)
	require.Len(t, curve.Points, 12)
	// 共用种子时价格随现价单调递增。
	for i := 1; i < len(curve.Points); i++ {
		assert.GreaterOrEqual(t, curve.Points[i].Price, curve.Points[i-1].Price)
	}
}

func TestImpliedVolatilityRoundTrip(t *testing.T) {
	e, _ := newEngine(t, testConfig())
	ctx := context.Background()
	c := reference(contract.Call)
	price, err := e.Price(ctx, c)
	require.NoError(t, err)

	c.Volatility = 0.5
	iv, err := e.ImpliedVolatility(ctx, c, price)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, iv, 1e-8)

	c.Category = contract.Digital
	c.Digital = contract.DigitalTerms{Payout: 1}
	_, err = e.ImpliedVolatility(ctx, c, 0.1)
	assert.True(t, xerrors.IsValidation(err))
}

func TestQuoteRoundsPrice(t *testing.T) {
	e, _ := newEngine(t, testConfig())
	q, err := e.Quote(context.Background(), reference(contract.Call), pricer.Analytic)
	require.NoError(t, err)
	assert.Equal(t, "2.358148", q.Price.String())
	assert.True(t, q.StdErr.IsZero())
	assert.NotEmpty(t, q.RequestID)
}

func TestCallsAreTraced(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	e, _ := newEngine(t, testConfig())
	c := reference(contract.Call)
	c.Volatility = -1
	_, _ = e.Price(context.Background(), reference(contract.Call))
	_, _ = e.Price(context.Background(), c)

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "derivkit.price", ended[0].Name())
	assert.Empty(t, ended[0].Events())
	assert.Len(t, ended[1].Events(), 1)
}
