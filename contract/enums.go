package contract

import (
	"strings"

	"github.com/wyfcoding/derivkit/xerrors"
)

// enumText 为各枚举类型提供统一的字符串解析与输出。名称为空串的下标表示未设置，不可解析也不合法。
type enumText struct {
	kind    string
	names   []string
	aliases map[string]int
	err     *xerrors.Error
}

func (e enumText) name(i uint8) string {
	if e.valid(i) {
		return e.names[i]
	}
	return "unknown"
}

func (e enumText) parse(s string) (uint8, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, n := range e.names {
		if n != "" && n == key {
			return uint8(i), nil
		}
	}
	if i, ok := e.aliases[key]; ok {
		return uint8(i), nil
	}
	return 0, e.err.Derive("%s %q", e.kind, s)
}

func (e enumText) valid(i uint8) bool { return int(i) < len(e.names) && e.names[i] != "" }

// Right 期权方向。零值表示未设置，需要方向的合约类别在校验时拒绝零值。
type Right uint8

const (
	Call Right = iota + 1
	Put
)

var rightText = enumText{kind: "right", names: []string{"", "call", "put"}, err: xerrors.ErrUnsupportedRight}

func (r Right) String() string { return rightText.name(uint8(r)) }

// Sign 看涨为 +1，看跌为 -1。
func (r Right) Sign() float64 {
	if r == Put {
		return -1
	}
	return 1
}

// Intrinsic 返回标的价格为 s 时的内在价值。
func (r Right) Intrinsic(s, k float64) float64 {
	v := r.Sign() * (s - k)
	if v < 0 {
		return 0
	}
	return v
}

// ParseRight 解析期权方向。
func ParseRight(s string) (Right, error) {
	v, err := rightText.parse(s)
	return Right(v), err
}

func (r Right) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Right) UnmarshalText(b []byte) error {
	v, err := ParseRight(string(b))
	*r = v
	return err
}

// Exercise 行权方式。
type Exercise uint8

const (
	European Exercise = iota
	American
)

var exerciseText = enumText{
	kind:  "exercise style",
	names: []string{"european", "american"},
	err:   xerrors.ErrUnsupportedCategory,
}

func (e Exercise) String() string { return exerciseText.name(uint8(e)) }

// ParseExercise 解析行权方式。
func ParseExercise(s string) (Exercise, error) {
	v, err := exerciseText.parse(s)
	return Exercise(v), err
}

func (e Exercise) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *Exercise) UnmarshalText(b []byte) error {
	v, err := ParseExercise(string(b))
	*e = v
	return err
}

// Category 合约类别，决定定价路由。
type Category uint8

const (
	Vanilla Category = iota
	Asian
	Barrier
	Digital
	Lookback
	Quanto
	Autocall
	Strategy
)

var categoryText = enumText{
	kind:  "category",
	names: []string{"vanilla", "asian", "barrier", "digital", "lookback", "quanto", "autocall", "strategy"},
	err:   xerrors.ErrUnsupportedCategory,
}

func (c Category) String() string { return categoryText.name(uint8(c)) }

// ParseCategory 解析合约类别。
func ParseCategory(s string) (Category, error) {
	v, err := categoryText.parse(s)
	return Category(v), err
}

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	*c = v
	return err
}

// Direction 障碍方向。
type Direction uint8

const (
	Up Direction = iota
	Down
)

var directionText = enumText{kind: "direction", names: []string{"up", "down"}, err: xerrors.ErrUnsupportedBarrier}

func (d Direction) String() string { return directionText.name(uint8(d)) }

// Crossed 判断价格 s 是否已触及障碍 h：向上为 s >= h，向下为 s <= h。
func (d Direction) Crossed(s, h float64) bool {
	if d == Down {
		return s <= h
	}
	return s >= h
}

// ParseDirection 解析障碍方向。
func ParseDirection(s string) (Direction, error) {
	v, err := directionText.parse(s)
	return Direction(v), err
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	*d = v
	return err
}

// Knock 敲入或敲出。
type Knock uint8

const (
	In Knock = iota
	Out
)

var knockText = enumText{kind: "knock", names: []string{"in", "out"}, err: xerrors.ErrUnsupportedBarrier}

func (k Knock) String() string { return knockText.name(uint8(k)) }

// ParseKnock 解析敲入/敲出。
func ParseKnock(s string) (Knock, error) {
	v, err := knockText.parse(s)
	return Knock(v), err
}

func (k Knock) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Knock) UnmarshalText(b []byte) error {
	v, err := ParseKnock(string(b))
	*k = v
	return err
}

// Averaging 亚式期权平均方式。
type Averaging uint8

const (
	Arithmetic Averaging = iota
	Geometric
)

var averagingText = enumText{
	kind:  "averaging",
	names: []string{"arithmetic", "geometric"},
	err:   xerrors.ErrMissingTerms,
}

func (a Averaging) String() string { return averagingText.name(uint8(a)) }

// ParseAveraging 解析平均方式。
func ParseAveraging(s string) (Averaging, error) {
	v, err := averagingText.parse(s)
	return Averaging(v), err
}

func (a Averaging) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Averaging) UnmarshalText(b []byte) error {
	v, err := ParseAveraging(string(b))
	*a = v
	return err
}

// Frequency 观察频率。
type Frequency uint8

const (
	Daily Frequency = iota
	Weekly
	Monthly
	Quarterly
	SemiAnnual
	Annual
)

var frequencyText = enumText{
	kind:  "frequency",
	names: []string{"daily", "weekly", "monthly", "quarterly", "semiannual", "annual"},
	aliases: map[string]int{
		"semi-annual":  int(SemiAnnual),
		"semestrially": int(SemiAnnual),
		"annually":     int(Annual),
	},
	err: xerrors.ErrUnsupportedFrequency,
}

func (f Frequency) String() string { return frequencyText.name(uint8(f)) }

// PerYear 每年观察次数。
func (f Frequency) PerYear() float64 {
	switch f {
	case Daily:
		return 365
	case Weekly:
		return 52
	case Monthly:
		return 12
	case Quarterly:
		return 4
	case SemiAnnual:
		return 2
	default:
		return 1
	}
}

// ParseFrequency 解析观察频率。
func ParseFrequency(s string) (Frequency, error) {
	v, err := frequencyText.parse(s)
	return Frequency(v), err
}

func (f Frequency) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Frequency) UnmarshalText(b []byte) error {
	v, err := ParseFrequency(string(b))
	*f = v
	return err
}

// StrikeType 回望期权行权价类型。
type StrikeType uint8

const (
	Fixed StrikeType = iota
	Floating
)

var strikeTypeText = enumText{kind: "strike type", names: []string{"fixed", "floating"}, err: xerrors.ErrUnsupportedStrikeType}

func (s StrikeType) String() string { return strikeTypeText.name(uint8(s)) }

// ParseStrikeType 解析行权价类型。
func ParseStrikeType(s string) (StrikeType, error) {
	v, err := strikeTypeText.parse(s)
	return StrikeType(v), err
}

func (s StrikeType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *StrikeType) UnmarshalText(b []byte) error {
	v, err := ParseStrikeType(string(b))
	*s = v
	return err
}

// AutocallKind 自动赎回产品结构：phoenix 票息障碍独立，athena 票息障碍等于提前赎回障碍。
type AutocallKind uint8

const (
	Phoenix AutocallKind = iota
	Athena
)

var autocallKindText = enumText{
	kind:  "autocall kind",
	names: []string{"phoenix", "athena"},
	err:   xerrors.ErrUnsupportedCategory,
}

func (k AutocallKind) String() string { return autocallKindText.name(uint8(k)) }

// ParseAutocallKind 解析自动赎回产品结构。
func ParseAutocallKind(s string) (AutocallKind, error) {
	v, err := autocallKindText.parse(s)
	return AutocallKind(v), err
}

func (k AutocallKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *AutocallKind) UnmarshalText(b []byte) error {
	v, err := ParseAutocallKind(string(b))
	*k = v
	return err
}
