// Package sim 几何布朗运动路径模拟。
package sim

import (
	crand "crypto/rand"
	"encoding/binary"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wyfcoding/derivkit/xerrors"
)

// Params 风险中性 GBM 参数。
type Params struct {
	Spot       float64
	Maturity   float64
	Rate       float64
	Dividend   float64
	Volatility float64
}

// Paths 一批模拟结果。Prices 为 n×(steps+1)，首列为期初价格；Shocks 为 n×steps 的标准正态冲击。
type Paths struct {
	Prices *mat.Dense
	Shocks *mat.Dense
	Dt     float64
}

// Len 返回路径条数。
func (p *Paths) Len() int {
	r, _ := p.Prices.Dims()
	return r
}

// Path 返回第 i 条价格路径，底层内存与矩阵共享，调用方不得修改。
func (p *Paths) Path(i int) []float64 { return p.Prices.RawRowView(i) }

// Shock 返回第 i 条路径的逐步冲击。
func (p *Paths) Shock(i int) []float64 { return p.Shocks.RawRowView(i) }

// Simulator 按顺序消费同一随机流的 GBM 模拟器。
// 先取 3 条再取 2 条与一次取 5 条得到完全相同的路径。
type Simulator struct {
	params    Params
	steps     int
	dt        float64
	drift     float64
	diffusion float64
	seed      uint64
	normal    distuv.Normal
}

// Option 模拟器选项。
type Option func(*Simulator)

// WithSeed 固定随机种子。0 表示不固定，由 crypto/rand 生成。
func WithSeed(seed uint64) Option {
	return func(s *Simulator) { s.seed = seed }
}

// New 创建步数为 steps 的模拟器。
func New(p Params, steps int, opts ...Option) (*Simulator, error) {
	if steps <= 0 {
		return nil, xerrors.ErrNonPositiveCount.Derive("steps=%d", steps)
	}
	s := &Simulator{params: p, steps: steps}
	for _, opt := range opts {
		opt(s)
	}
	if s.seed == 0 {
		s.seed = RandomSeed()
	}

	// 预计算常量.
	s.dt = p.Maturity / float64(steps)
	s.drift = (p.Rate - p.Dividend - 0.5*p.Volatility*p.Volatility) * s.dt
	s.diffusion = p.Volatility * math.Sqrt(s.dt)
	s.normal = distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(s.seed)}
	return s, nil
}

// Seed 返回实际使用的种子，用于复现。
func (s *Simulator) Seed() uint64 { return s.seed }

// Steps 返回每条路径的步数。
func (s *Simulator) Steps() int { return s.steps }

// Dt 返回时间步长。
func (s *Simulator) Dt() float64 { return s.dt }

// Params 返回模拟参数。
func (s *Simulator) Params() Params { return s.params }

// Next 从随机流中继续生成 n 条路径。
func (s *Simulator) Next(n int) (*Paths, error) {
	if n <= 0 {
		return nil, xerrors.ErrNonPositiveCount.Derive("paths=%d", n)
	}

	prices := mat.NewDense(n, s.steps+1, nil)
	shocks := mat.NewDense(n, s.steps, nil)
	for i := range n {
		row := prices.RawRowView(i)
		z := shocks.RawRowView(i)
		row[0] = s.params.Spot
		for j := range s.steps {
			z[j] = s.normal.Rand()
			row[j+1] = row[j] * math.Exp(s.drift+s.diffusion*z[j])
		}
	}
	return &Paths{Prices: prices, Shocks: shocks, Dt: s.dt}, nil
}

// Simulate 一次性生成 numPaths 条路径。seed 为 0 时每次调用相互独立。
func Simulate(p Params, numPaths, numSteps int, seed uint64) (*Paths, error) {
	if numPaths <= 0 {
		return nil, xerrors.ErrNonPositiveCount.Derive("paths=%d", numPaths)
	}
	s, err := New(p, numSteps, WithSeed(seed))
	if err != nil {
		return nil, err
	}
	return s.Next(numPaths)
}

// RandomSeed 从 crypto/rand 取种子，失败时退回到时间戳。
func RandomSeed() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano()) | 1
	}
	if v := binary.LittleEndian.Uint64(b[:]); v != 0 {
		return v
	}
	return 1
}
