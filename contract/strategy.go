package contract

import "github.com/wyfcoding/derivkit/xerrors"

// Preset 常见期权组合策略。
type Preset uint8

const (
	CallSpread Preset = iota
	PutSpread
	Straddle
	Strangle
	Butterfly
	Condor
	RiskReversal
)

var presetText = enumText{
	kind:  "strategy preset",
	names: []string{"call_spread", "put_spread", "straddle", "strangle", "butterfly", "condor", "risk_reversal"},
	err:   xerrors.ErrUnsupportedCategory,
}

func (p Preset) String() string { return presetText.name(uint8(p)) }

// ParsePreset 解析组合策略名称。
func ParsePreset(s string) (Preset, error) {
	v, err := presetText.parse(s)
	return Preset(v), err
}

type presetLeg struct {
	right  Right
	weight float64
}

// layout 返回策略各腿的方向与权重，权重为正表示买入。
func (p Preset) layout() []presetLeg {
	switch p {
	case CallSpread:
		return []presetLeg{{Call, 1}, {Call, -1}}
	case PutSpread:
		return []presetLeg{{Put, -1}, {Put, 1}}
	case Straddle, Strangle:
		return []presetLeg{{Call, 1}, {Put, 1}}
	case Butterfly:
		return []presetLeg{{Call, 1}, {Call, -2}, {Call, 1}}
	case Condor:
		return []presetLeg{{Call, 1}, {Call, -1}, {Call, -1}, {Call, 1}}
	case RiskReversal:
		return []presetLeg{{Call, 1}, {Put, -1}}
	default:
		return nil
	}
}

// LegCount 返回策略需要的腿数。
func (p Preset) LegCount() int { return len(p.layout()) }

// NewStrategy 以 base 的市场参数和行权方式构造组合策略，strikes 与 vols 按腿顺序给出。
// 任一腿缺少行权价或波动率时返回 ValidationError。
func NewStrategy(p Preset, base Contract, strikes, vols []float64) (Contract, error) {
	layout := p.layout()
	if layout == nil {
		return Contract{}, xerrors.ErrUnsupportedCategory.Derive("strategy preset=%d", p)
	}

	legs := make([]Leg, len(layout))
	for i, pl := range layout {
		if i >= len(strikes) || i >= len(vols) || strikes[i] <= 0 || vols[i] <= 0 {
			return Contract{}, xerrors.ErrMissingLegParameter.Derive("%s leg %d needs a strike and a volatility", p, i).
				WithContext("leg", i)
		}
		legs[i] = Leg{Right: pl.right, Strike: strikes[i], Volatility: vols[i], Weight: pl.weight}
	}

	c := base
	c.Category = Strategy
	c.Strike = 0
	c.Legs = legs
	if err := c.Validate(); err != nil {
		return Contract{}, err
	}
	return c, nil
}
