// Package contract 定义衍生品合约的不可变描述、校验规则、参数覆盖副本与组合策略预设。
package contract

import (
	"encoding/json"
	"math"
	"slices"

	"github.com/wyfcoding/derivkit/validator"
	"github.com/wyfcoding/derivkit/xerrors"
)

// MaxLegs 组合策略的最大腿数。
const MaxLegs = 4

// Contract 一次估值请求的合约条款。按值传递，核心代码从不修改调用方持有的实例。
type Contract struct {
	Category   Category `json:"category"`
	Right      Right    `json:"right,omitzero"`
	Exercise   Exercise `json:"exercise"`
	Spot       float64  `json:"spot"       validate:"finite,gt=0"`
	Strike     float64  `json:"strike"     validate:"finite,gte=0"`
	Maturity   float64  `json:"maturity"   validate:"finite,gt=0"`
	Rate       float64  `json:"rate"       validate:"finite"`
	Dividend   float64  `json:"dividend"   validate:"finite"`
	Volatility float64  `json:"volatility" validate:"finite,gte=0"`

	Asian    AsianTerms    `json:"asian,omitzero"    validate:"-"`
	Barrier  BarrierTerms  `json:"barrier,omitzero"  validate:"-"`
	Digital  DigitalTerms  `json:"digital,omitzero"  validate:"-"`
	Lookback LookbackTerms `json:"lookback,omitzero" validate:"-"`
	Quanto   QuantoTerms   `json:"quanto,omitzero"   validate:"-"`
	Autocall AutocallTerms `json:"autocall,omitzero" validate:"-"`
	Legs     []Leg         `json:"legs,omitempty"    validate:"-"`
}

// AsianTerms 亚式期权条款。
type AsianTerms struct {
	Averaging Averaging `json:"averaging"`
	Frequency Frequency `json:"frequency"`
}

// BarrierTerms 障碍期权条款。
type BarrierTerms struct {
	Level     float64   `json:"level"     validate:"finite,gt=0"`
	Direction Direction `json:"direction"`
	Knock     Knock     `json:"knock"`
	Rebate    float64   `json:"rebate"    validate:"finite,gte=0"`
}

// DigitalTerms 现金或无价值数字期权条款，可选附带已触及即作废的障碍。
type DigitalTerms struct {
	Payout     float64   `json:"payout"      validate:"finite,gt=0"`
	HasBarrier bool      `json:"has_barrier"`
	Level      float64   `json:"level"       validate:"finite,gte=0"`
	Direction  Direction `json:"direction"`
}

// Breached 判断可选障碍在当前价格下是否已触及。
func (d DigitalTerms) Breached(spot float64) bool {
	return d.HasBarrier && d.Direction.Crossed(spot, d.Level)
}

// LookbackTerms 回望期权条款。
type LookbackTerms struct {
	StrikeType StrikeType `json:"strike_type"`
}

// QuantoTerms 双币种期权条款。
type QuantoTerms struct {
	ForeignRate  float64 `json:"foreign_rate"  validate:"finite"`
	FXVolatility float64 `json:"fx_volatility" validate:"finite,gt=0"`
	Correlation  float64 `json:"correlation"   validate:"finite,gte=-1,lte=1"`
}

// AutocallTerms 自动赎回结构化票据条款。Percent 为真时三个障碍按期初价格的百分比给出。
type AutocallTerms struct {
	Kind           AutocallKind `json:"kind"`
	Coupon         float64      `json:"coupon"          validate:"finite,gte=0"`
	CapitalBarrier float64      `json:"capital_barrier" validate:"finite,gt=0"`
	EarlyBarrier   float64      `json:"early_barrier"   validate:"finite,gt=0"`
	CouponBarrier  float64      `json:"coupon_barrier"  validate:"finite,gte=0"`
	Percent        bool         `json:"percent"`
	Memory         bool         `json:"memory"`
	Frequency      Frequency    `json:"frequency"`
}

// Levels 换算出绝对价格水平的资本保护、提前赎回与票息障碍。
func (a AutocallTerms) Levels(spot float64) (capital, early, coupon float64) {
	capital, early, coupon = a.CapitalBarrier, a.EarlyBarrier, a.CouponBarrier
	if a.Kind == Athena {
		coupon = early
	}
	if a.Percent {
		capital, early, coupon = capital/100*spot, early/100*spot, coupon/100*spot
	}
	return capital, early, coupon
}

// Observations 返回观察日数量 round(f·T)。
func (a AutocallTerms) Observations(maturity float64) int {
	return int(math.Round(a.Frequency.PerYear() * maturity))
}

// Leg 组合策略中的一条腿。
type Leg struct {
	Right      Right   `json:"right"`
	Strike     float64 `json:"strike"     validate:"finite,gte=0"`
	Volatility float64 `json:"volatility" validate:"finite,gte=0"`
	Weight     float64 `json:"weight"     validate:"finite"`
}

// Leg 把第 i 条腿展开为一份普通期权合约，共享基础合约的市场参数与行权方式。
func (c Contract) Leg(i int) Contract {
	l := c.Legs[i]
	return Contract{
		Category:   Vanilla,
		Right:      l.Right,
		Exercise:   c.Exercise,
		Spot:       c.Spot,
		Strike:     l.Strike,
		Maturity:   c.Maturity,
		Rate:       c.Rate,
		Dividend:   c.Dividend,
		Volatility: l.Volatility,
	}
}

// KnockedOut 判断合约在当前价格下是否已处于敲出状态。
func (c Contract) KnockedOut() bool {
	switch c.Category {
	case Barrier:
		return c.Barrier.Knock == Out && c.Barrier.Direction.Crossed(c.Spot, c.Barrier.Level)
	case Digital:
		return c.Digital.Breached(c.Spot)
	default:
		return false
	}
}

// KnockedIn 判断敲入障碍在当前价格下是否已触及。
func (c Contract) KnockedIn() bool {
	return c.Category == Barrier && c.Barrier.Knock == In && c.Barrier.Direction.Crossed(c.Spot, c.Barrier.Level)
}

// Key 返回合约的规范 JSON 编码，用作缓存键的一部分。
func (c Contract) Key() string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(b)
}

// Validate 校验合约条款。校验在每次定价调用开始时执行，不会推迟到数值计算内部。
func (c Contract) Validate() error {
	if err := validator.Struct(c); err != nil {
		return err
	}
	if !categoryText.valid(uint8(c.Category)) {
		return xerrors.ErrUnsupportedCategory.Derive("category=%d", c.Category)
	}
	if c.Right != 0 || needsRight(c.Category) {
		if !rightText.valid(uint8(c.Right)) {
			return xerrors.ErrUnsupportedRight.Derive("%s needs call or put, got right=%d", c.Category, c.Right).
				WithContext("field", "right")
		}
	}
	if !exerciseText.valid(uint8(c.Exercise)) {
		return xerrors.ErrUnsupportedCategory.Derive("exercise=%d", c.Exercise)
	}
	if c.Exercise == American && !slices.Contains([]Category{Vanilla, Barrier, Strategy}, c.Category) {
		return xerrors.ErrUnsupportedMethod.Derive("american exercise is not supported for %s", c.Category)
	}

	needsStrike := true
	switch c.Category {
	case Autocall, Strategy:
		needsStrike = false
	case Lookback:
		needsStrike = c.Lookback.StrikeType == Fixed
	}
	if needsStrike && c.Strike <= 0 {
		return xerrors.ErrNonPositive.Derive("strike=%g", c.Strike).WithContext("field", "strike")
	}
	if c.Category != Strategy && c.Volatility <= 0 {
		return xerrors.ErrNonPositive.Derive("volatility=%g", c.Volatility).WithContext("field", "volatility")
	}

	return c.validateTerms()
}

// needsRight 自动赎回票据没有方向，组合策略的方向由各腿给出。
func needsRight(cat Category) bool {
	return cat != Autocall && cat != Strategy
}

func (c Contract) validateTerms() error {
	switch c.Category {
	case Asian:
		if !averagingText.valid(uint8(c.Asian.Averaging)) {
			return xerrors.ErrMissingTerms.Derive("averaging=%d", c.Asian.Averaging)
		}
		if c.Asian.Frequency > Monthly {
			return xerrors.ErrUnsupportedFrequency.Derive("asian averaging supports daily, weekly, monthly; got %s", c.Asian.Frequency)
		}
	case Barrier:
		if !directionText.valid(uint8(c.Barrier.Direction)) || !knockText.valid(uint8(c.Barrier.Knock)) {
			return xerrors.ErrUnsupportedBarrier.Derive("direction=%d knock=%d", c.Barrier.Direction, c.Barrier.Knock)
		}
		return validator.Struct(c.Barrier)
	case Digital:
		if c.Digital.HasBarrier {
			if !directionText.valid(uint8(c.Digital.Direction)) {
				return xerrors.ErrUnsupportedBarrier.Derive("direction=%d", c.Digital.Direction)
			}
			if c.Digital.Level <= 0 {
				return xerrors.ErrNonPositive.Derive("digital barrier level=%g", c.Digital.Level)
			}
		}
		return validator.Struct(c.Digital)
	case Lookback:
		if !strikeTypeText.valid(uint8(c.Lookback.StrikeType)) {
			return xerrors.ErrUnsupportedStrikeType.Derive("strike_type=%d", c.Lookback.StrikeType)
		}
	case Quanto:
		return validator.Struct(c.Quanto)
	case Autocall:
		return c.validateAutocall()
	case Strategy:
		return c.validateLegs()
	}
	return nil
}

func (c Contract) validateAutocall() error {
	a := c.Autocall
	if err := validator.Struct(a); err != nil {
		return err
	}
	if !autocallKindText.valid(uint8(a.Kind)) {
		return xerrors.ErrUnsupportedCategory.Derive("autocall kind=%d", a.Kind)
	}
	if a.Frequency < Monthly || !frequencyText.valid(uint8(a.Frequency)) {
		return xerrors.ErrUnsupportedFrequency.Derive("autocall observes monthly, quarterly, semiannual or annual; got %s", a.Frequency)
	}
	if a.Kind == Phoenix && a.CouponBarrier <= 0 {
		return xerrors.ErrNonPositive.Derive("coupon_barrier=%g", a.CouponBarrier)
	}
	capital, early, _ := a.Levels(c.Spot)
	if capital >= early {
		return xerrors.ErrMissingTerms.Derive("capital barrier %g must lie below early-redemption barrier %g", capital, early)
	}
	if a.Observations(c.Maturity) < 1 {
		return xerrors.ErrMissingTerms.Derive("maturity %g has no %s observation date", c.Maturity, a.Frequency)
	}
	return nil
}

func (c Contract) validateLegs() error {
	if len(c.Legs) == 0 || len(c.Legs) > MaxLegs {
		return xerrors.ErrMissingLegParameter.Derive("strategy needs 1 to %d legs, got %d", MaxLegs, len(c.Legs))
	}
	for i, l := range c.Legs {
		if err := validator.Struct(l); err != nil {
			return err
		}
		if !rightText.valid(uint8(l.Right)) {
			return xerrors.ErrUnsupportedRight.Derive("leg %d right=%d", i, l.Right)
		}
		if l.Strike <= 0 || l.Volatility <= 0 {
			return xerrors.ErrMissingLegParameter.Derive("leg %d strike=%g volatility=%g", i, l.Strike, l.Volatility).
				WithContext("leg", i)
		}
	}
	return nil
}
