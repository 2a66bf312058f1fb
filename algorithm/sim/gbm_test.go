package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wyfcoding/derivkit/xerrors"
)

var base = Params{Spot: 100, Maturity: 1, Rate: 0.05, Dividend: 0, Volatility: 0.2}

func TestSeededRunsAreReproducible(t *testing.T) {
	a, err := Simulate(base, 50, 12, 42)
	require.NoError(t, err)
	b, err := Simulate(base, 50, 12, 42)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.Prices, b.Prices))
	assert.True(t, mat.Equal(a.Shocks, b.Shocks))

	c, err := Simulate(base, 50, 12, 43)
	require.NoError(t, err)
	assert.False(t, mat.Equal(a.Prices, c.Prices))
}

func TestUnseededRunsDiffer(t *testing.T) {
	a, err := New(base, 4)
	require.NoError(t, err)
	b, err := New(base, 4)
	require.NoError(t, err)
	assert.NotEqual(t, a.Seed(), b.Seed())
}

func TestBatchingDoesNotChangePaths(t *testing.T) {
	whole, err := Simulate(base, 5, 8, 7)
	require.NoError(t, err)

	s, err := New(base, 8, WithSeed(7))
	require.NoError(t, err)
	first, err := s.Next(3)
	require.NoError(t, err)
	second, err := s.Next(2)
	require.NoError(t, err)

	for i := range 3 {
		assert.Equal(t, whole.Path(i), first.Path(i))
	}
	for i := range 2 {
		assert.Equal(t, whole.Path(3+i), second.Path(i))
		assert.Equal(t, whole.Shock(3+i), second.Shock(i))
	}
}

func TestShapeAndFirstColumn(t *testing.T) {
	p, err := Simulate(base, 10, 6, 1)
	require.NoError(t, err)
	r, c := p.Prices.Dims()
	assert.Equal(t, 10, r)
	assert.Equal(t, 7, c)
	r, c = p.Shocks.Dims()
	assert.Equal(t, 10, r)
	assert.Equal(t, 6, c)
	assert.InDelta(t, 1.0/6, p.Dt, 1e-15)
	for i := range p.Len() {
		assert.Equal(t, 100.0, p.Path(i)[0])
	}
}

func TestTerminalMeanMatchesForward(t *testing.T) {
	const n = 20000
	p, err := Simulate(base, n, 10, 2024)
	require.NoError(t, err)

	terminal := mat.Col(nil, 10, p.Prices)
	mean, std := stat.MeanStdDev(terminal, nil)
	forward := 100 * math.Exp(0.05)
	assert.InDelta(t, forward, mean, 4*std/math.Sqrt(n))

	shocks := p.Shocks.RawMatrix().Data
	zm, zv := stat.MeanVariance(shocks, nil)
	assert.InDelta(t, 0, zm, 0.01)
	assert.InDelta(t, 1, zv, 0.01)
}

func TestNonPositiveCounts(t *testing.T) {
	_, err := Simulate(base, 0, 10, 1)
	assert.True(t, xerrors.IsConfiguration(err))

	_, err = Simulate(base, 10, -1, 1)
	assert.True(t, xerrors.IsConfiguration(err))

	s, err := New(base, 3, WithSeed(1))
	require.NoError(t, err)
	_, err = s.Next(0)
	assert.ErrorIs(t, err, xerrors.ErrNonPositiveCount)
}

func TestMomentsMergeMatchesSinglePass(t *testing.T) {
	xs := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5}
	var m Moments
	m.Merge(xs[:4])
	m.Merge(xs[4:5])
	m.Merge(xs[5:])

	mean, variance := stat.MeanVariance(xs, nil)
	assert.Equal(t, len(xs), m.Count())
	assert.InDelta(t, mean, m.Mean(), 1e-12)
	assert.InDelta(t, variance, m.Variance(), 1e-12)
	assert.InDelta(t, math.Sqrt(variance/float64(len(xs))), m.StdErr(), 1e-12)
}
