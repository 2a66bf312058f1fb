package greeks

import (
	"context"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/wyfcoding/derivkit/algorithm/finance"
	"github.com/wyfcoding/derivkit/config"
	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/logging"
	"github.com/wyfcoding/derivkit/pricer"
	"github.com/wyfcoding/derivkit/xerrors"
)

// 波动率与利率扫描的固定区间。
const (
	volLow, volHigh   = 0.01, 0.8
	rateLow, rateHigh = -0.01, 0.1
	minSpot           = 1e-5
	minMaturity       = 1e-4
)

// Order 拟合曲线输出的导数阶数。
type Order uint8

const (
	Level Order = iota
	Slope
	Curvature
)

var orderNames = [...]string{"value", "first", "second"}

func (o Order) String() string {
	if int(o) < len(orderNames) {
		return orderNames[o]
	}
	return "unknown"
}

// ParseOrder 解析导数阶数，也接受 0、1、2。
func ParseOrder(s string) (Order, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, n := range orderNames {
		if key == n || key == string(rune('0'+i)) {
			return Order(i), nil
		}
	}
	return 0, xerrors.ErrMissingTerms.Derive("profile order %q", s)
}

func (o Order) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Order) UnmarshalText(b []byte) error {
	v, err := ParseOrder(string(b))
	*o = v
	return err
}

// Point 扫描网格上的一个点。Excluded 为真表示该点价格非有限，未参与拟合。
type Point struct {
	X        float64 `json:"x"`
	Price    float64 `json:"price"`
	Fitted   float64 `json:"fitted"`
	Excluded bool    `json:"excluded,omitempty"`
}

// Curve 单参数敏感度曲线。
type Curve struct {
	Param    contract.Param    `json:"param"`
	Order    Order             `json:"order"`
	Degree   int               `json:"degree"`
	Points   []Point           `json:"points"`
	Warnings []xerrors.Warning `json:"warnings,omitempty"`
}

// Profiler 在参数网格上逐点定价，再以最小二乘多项式平滑并求导。
type Profiler struct {
	Pricer   pricer.Pricer
	Settings config.ProfileConfig
}

// NewProfiler 创建曲线扫描器。
func NewProfiler(p pricer.Pricer, settings config.ProfileConfig) *Profiler {
	return &Profiler{Pricer: p, Settings: settings}
}

// Grid 返回参数的扫描网格：现价与期限为当前值上下浮动 f，波动率与利率为固定区间。
func Grid(c contract.Contract, param contract.Param, settings config.ProfileConfig) ([]float64, error) {
	if settings.Points < 2 {
		return nil, xerrors.ErrNonPositiveCount.Derive("profile points=%d", settings.Points)
	}
	var lo, hi float64
	switch param {
	case contract.ParamSpot:
		lo, hi = math.Max(c.Spot*(1-settings.SpotRange), minSpot), c.Spot*(1+settings.SpotRange)
	case contract.ParamVolatility:
		lo, hi = volLow, volHigh
	case contract.ParamMaturity:
		lo, hi = math.Max(c.Maturity*(1-settings.MaturityRange), minMaturity), c.Maturity*(1+settings.MaturityRange)
	case contract.ParamRate:
		lo, hi = rateLow, rateHigh
	default:
		return nil, xerrors.ErrMissingTerms.Derive("profile over %s is not supported", param)
	}

	grid := make([]float64, settings.Points)
	step := (hi - lo) / float64(settings.Points-1)
	for i := range grid {
		grid[i] = lo + float64(i)*step
	}
	grid[len(grid)-1] = hi
	return grid, nil
}

// Profile 扫描 param 并返回拟合曲线在每个网格点上的 order 阶导数。
// 非有限价格与近乎平坦的价格序列产生数值告警，不中断计算；剩余有效点不足以拟合时返回 ModelError。
func (p *Profiler) Profile(ctx context.Context, c contract.Contract, param contract.Param, order Order) (*Curve, error) {
	grid, err := Grid(c, param, p.Settings)
	if err != nil {
		return nil, err
	}

	curve := &Curve{Param: param, Order: order, Degree: p.Settings.Degree, Points: make([]Point, len(grid))}
	xs := make([]float64, 0, len(grid))
	ys := make([]float64, 0, len(grid))
	for i, x := range grid {
		est, err := p.Pricer.Price(ctx, c.With(param, x))
		if err != nil {
			return nil, err
		}
		curve.Points[i].X = x
		if math.IsNaN(est.Value) || math.IsInf(est.Value, 0) {
			curve.Points[i].Excluded = true
			curve.warn(ctx, xerrors.Warning{
				Kind: xerrors.WarnNonFinite, Param: param.String(), Value: x,
				Message: "non-finite price excluded from fit",
			})
			continue
		}
		curve.Points[i].Price = est.Value
		xs = append(xs, x)
		ys = append(ys, est.Value)
	}

	if len(xs) < p.Settings.Degree+1 {
		return nil, xerrors.ErrDegenerateFit.Derive("%d finite points over %s for degree %d", len(xs), param, p.Settings.Degree)
	}
	if sd := stat.StdDev(ys, nil); sd < p.Settings.FlatTolerance {
		curve.warn(ctx, xerrors.Warning{
			Kind: xerrors.WarnFlatSampling, Param: param.String(), Value: sd,
			Message: "price barely moves across the grid; derivatives are unreliable",
		})
	}

	// 先把横轴线性映射到 [-1, 1] 再拟合，求导时按链式法则还原尺度。
	mid := (grid[0] + grid[len(grid)-1]) / 2
	half := (grid[len(grid)-1] - grid[0]) / 2
	us := make([]float64, len(xs))
	for i, x := range xs {
		us[i] = (x - mid) / half
	}
	poly, err := finance.PolyFit(us, ys, p.Settings.Degree)
	if err != nil {
		return nil, err
	}
	scale := 1.0
	for range order {
		poly = poly.Derivative()
		scale /= half
	}
	for i := range curve.Points {
		curve.Points[i].Fitted = poly.Eval((curve.Points[i].X-mid)/half) * scale
	}
	return curve, nil
}

func (c *Curve) warn(ctx context.Context, w xerrors.Warning) {
	c.Warnings = append(c.Warnings, w)
	logging.Warn(ctx, "numerical warning", "kind", w.Kind, "param", w.Param, "value", w.Value, "message", w.Message)
}
