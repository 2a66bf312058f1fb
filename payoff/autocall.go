package payoff

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/fsm"
)

// PathState 自动赎回票据单条路径的生命周期状态。
type PathState uint8

const (
	Active PathState = iota
	EarlyRedeemed
	CapitalKnockedIn
	MaturedFull
)

func (s PathState) String() string {
	switch s {
	case Active:
		return "active"
	case EarlyRedeemed:
		return "early_redeemed"
	case CapitalKnockedIn:
		return "capital_knocked_in"
	case MaturedFull:
		return "matured_full"
	default:
		return "unknown"
	}
}

type lifeEvent uint8

const (
	eventRedeem lifeEvent = iota
	eventKnockIn
	eventMature
)

// outcome 单条路径的结算结果，result 以到期日价值计。
type outcome struct {
	result float64
	life   int
}

// settle 终止转移的统一处理器：args 为 (*outcome, 金额, 观察序号)。
func settle(_ context.Context, _, _ PathState, args ...any) error {
	o := args[0].(*outcome)
	o.result = args[1].(float64)
	o.life = args[2].(int)
	return nil
}

var lifecycle = fsm.NewTable[PathState, lifeEvent]().
	AddTransition(Active, eventRedeem, EarlyRedeemed).
	AddTransition(Active, eventKnockIn, CapitalKnockedIn).
	AddTransition(Active, eventMature, MaturedFull).
	AddHandler(Active, EarlyRedeemed, settle).
	AddHandler(Active, CapitalKnockedIn, settle).
	AddHandler(Active, MaturedFull, settle)

// Autocall 自动赎回票据的逐路径状态机估值。名义本金等于期初价格。
type Autocall struct {
	terms    contract.AutocallTerms
	notional float64
	capital  float64
	early    float64
	coupon   float64
	rate     float64
	maturity float64
	forward  float64
	times    []float64
	indices  []int
	accrual  []float64 // e^{r(T-t_k)}
}

// NewAutocall 在 steps 步的网格上布置观察日：t_k=min((k+1)/f, T)，下标 round(t_k·steps/T)。
// 观察次数四舍五入后末次观察可能落在到期日之后，此时按到期日处理。
func NewAutocall(c contract.Contract, steps int) *Autocall {
	capital, early, coupon := c.Autocall.Levels(c.Spot)
	n := c.Autocall.Observations(c.Maturity)
	f := c.Autocall.Frequency.PerYear()

	a := &Autocall{
		terms:    c.Autocall,
		notional: c.Spot,
		capital:  capital,
		early:    early,
		coupon:   coupon,
		rate:     c.Rate,
		maturity: c.Maturity,
		forward:  c.Spot * math.Exp((c.Rate-c.Dividend)*c.Maturity),
		times:    make([]float64, n),
		indices:  make([]int, n),
		accrual:  make([]float64, n),
	}
	for k := range n {
		t := math.Min(float64(k+1)/f, c.Maturity)
		a.times[k] = t
		a.indices[k] = min(int(math.Round(t*float64(steps)/c.Maturity)), steps)
		a.accrual[k] = math.Exp(c.Rate * (c.Maturity - t))
	}
	return a
}

// Observations 返回观察日数量。
func (a *Autocall) Observations() int { return len(a.times) }

// AutocallTally 跨批次累积的统计量，可由多个批次依次写入。
type AutocallTally struct {
	paths       int
	sum         float64
	sumSq       float64
	ended       []int
	couponHits  []int
	losses      int
	couponsPaid float64
	flags       []bool
}

// NewTally 创建与观察日数量匹配的累加器。
func (a *Autocall) NewTally() *AutocallTally {
	n := len(a.times)
	return &AutocallTally{ended: make([]int, n), couponHits: make([]int, n), flags: make([]bool, n)}
}

// Evaluate 推进一条路径的状态机并把结果计入 tally，返回该路径的未贴现到期价值。
func (a *Autocall) Evaluate(ctx context.Context, path []float64, tally *AutocallTally) (float64, error) {
	m := lifecycle.New(Active)
	out := &outcome{life: len(a.times) - 1}
	flags := tally.flags
	clear(flags)

	for k, idx := range a.indices {
		s := path[idx]
		if s >= a.coupon {
			flags[k] = true
		}
		switch {
		case s >= a.early:
			if err := m.Trigger(ctx, eventRedeem, out, a.notional*a.accrual[k], k); err != nil {
				return 0, err
			}
		case s <= a.capital:
			if err := m.Trigger(ctx, eventKnockIn, out, s*a.accrual[k], k); err != nil {
				return 0, err
			}
		}
		if m.Done() {
			break
		}
	}

	if m.Current() == Active {
		st := path[len(path)-1]
		last := len(a.times) - 1
		if st >= a.capital {
			if err := m.Trigger(ctx, eventMature, out, a.notional, last); err != nil {
				return 0, err
			}
		} else if err := m.Trigger(ctx, eventKnockIn, out, st, last); err != nil {
			return 0, err
		}
	}

	value := out.result
	missed := 0
	for k, hit := range flags {
		if !hit {
			missed++
			continue
		}
		count := 1
		if a.terms.Memory {
			count += missed
		}
		missed = 0
		tally.couponHits[k]++
		tally.couponsPaid += float64(count)
		value += float64(count) * a.terms.Coupon * a.accrual[k]
	}

	tally.paths++
	tally.sum += value
	tally.sumSq += value * value
	tally.ended[out.life]++
	if m.Current() == CapitalKnockedIn {
		tally.losses++
	}
	return value, nil
}

// ObservationRow 单个观察日的概率。
type ObservationRow struct {
	Time                float64 `json:"time"`
	MaturityProbability float64 `json:"maturity_probability"`
	CouponProbability   float64 `json:"coupon_probability"`
}

// AutocallReport 自动赎回票据模拟报告。
type AutocallReport struct {
	RunID                  string                `json:"run_id"`
	Seed                   uint64                `json:"seed"`
	Paths                  int                   `json:"paths"`
	Kind                   contract.AutocallKind `json:"kind"`
	Observations           []ObservationRow      `json:"observations"`
	Forward                float64               `json:"forward"`
	ExpectedMaturity       float64               `json:"expected_maturity"`
	CapitalLossProbability float64               `json:"capital_loss_probability"`
	Price                  float64               `json:"price"`
	StdErr                 float64               `json:"std_err"`
	AverageCoupons         float64               `json:"average_coupons"`
}

// Report 由累加器生成报告，价格为到期价值均值乘以 e^{-rT}。
func (a *Autocall) Report(tally *AutocallTally, seed uint64) *AutocallReport {
	n := float64(tally.paths)
	disc := math.Exp(-a.rate * a.maturity)
	mean := tally.sum / n
	variance := math.Max(tally.sumSq/n-mean*mean, 0) * n / math.Max(n-1, 1)

	r := &AutocallReport{
		RunID:                  uuid.NewString(),
		Seed:                   seed,
		Paths:                  tally.paths,
		Kind:                   a.terms.Kind,
		Observations:           make([]ObservationRow, len(a.times)),
		Forward:                a.forward,
		CapitalLossProbability: float64(tally.losses) / n,
		Price:                  mean * disc,
		StdErr:                 math.Sqrt(variance/n) * disc,
		AverageCoupons:         tally.couponsPaid / n,
	}
	for k, t := range a.times {
		p := float64(tally.ended[k]) / n
		r.Observations[k] = ObservationRow{Time: t, MaturityProbability: p, CouponProbability: float64(tally.couponHits[k]) / n}
		r.ExpectedMaturity += p * t
	}
	return r
}

// DisplayRow 展示用的观察日行，概率以百分比表示并保留两位小数。
type DisplayRow struct {
	Time                decimal.Decimal `json:"time"`
	MaturityProbability decimal.Decimal `json:"maturity_probability_pct"`
	CouponProbability   decimal.Decimal `json:"coupon_probability_pct"`
}

var hundred = decimal.NewFromInt(100)

func percent(p float64) decimal.Decimal {
	return decimal.NewFromFloat(p).Mul(hundred).Round(2)
}

// Rows 返回展示用的概率表。
func (r *AutocallReport) Rows() []DisplayRow {
	rows := make([]DisplayRow, len(r.Observations))
	for i, o := range r.Observations {
		rows[i] = DisplayRow{
			Time:                decimal.NewFromFloat(o.Time).Round(4),
			MaturityProbability: percent(o.MaturityProbability),
			CouponProbability:   percent(o.CouponProbability),
		}
	}
	return rows
}

// Summary 返回展示用的汇总指标，概率以百分比表示。
func (r *AutocallReport) Summary() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"forward":                    decimal.NewFromFloat(r.Forward).Round(4),
		"expected_maturity":          decimal.NewFromFloat(r.ExpectedMaturity).Round(4),
		"capital_loss_probability_%": percent(r.CapitalLossProbability),
		"price":                      decimal.NewFromFloat(r.Price).Round(4),
		"average_coupons":            decimal.NewFromFloat(r.AverageCoupons).Round(2),
	}
}
