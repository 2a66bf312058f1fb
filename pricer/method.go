// Package pricer 三类定价器：解析公式、CRR 二叉树与蒙特卡洛模拟。
package pricer

import (
	"context"
	"math"
	"strings"

	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/xerrors"
)

// Method 定价方法。
type Method uint8

const (
	Analytic Method = iota
	Lattice
	MonteCarlo
)

var methodNames = [...]string{"analytic", "lattice", "monte_carlo"}

func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return "unknown"
}

// ParseMethod 解析定价方法名，接受 "mc" 作为 monte_carlo 的简写。
func ParseMethod(s string) (Method, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "mc" {
		return MonteCarlo, nil
	}
	for i, n := range methodNames {
		if n == key {
			return Method(i), nil
		}
	}
	return 0, xerrors.ErrUnsupportedMethod.Derive("method %q", s)
}

func (m Method) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Method) UnmarshalText(b []byte) error {
	v, err := ParseMethod(string(b))
	*m = v
	return err
}

// Estimate 一次估值结果。确定性方法的 StdErr 为 0，Paths 为实际模拟的路径数。
type Estimate struct {
	Value  float64 `json:"value"`
	StdErr float64 `json:"std_err"`
	Paths  int     `json:"paths,omitempty"`
	Seed   uint64  `json:"seed,omitempty"`
}

// Pricer 定价器。调用方负责在调用前完成合约校验。
type Pricer interface {
	Method() Method
	Price(ctx context.Context, c contract.Contract) (Estimate, error)
}

// Route 返回合约类别的默认定价方法。
func Route(c contract.Contract) Method {
	switch c.Category {
	case contract.Vanilla, contract.Barrier:
		if c.Exercise == contract.American {
			return Lattice
		}
		return Analytic
	case contract.Digital, contract.Quanto:
		return Analytic
	case contract.Strategy:
		if c.Exercise == contract.American {
			return Lattice
		}
		return Analytic
	default:
		return MonteCarlo
	}
}

func unsupported(m Method, c contract.Contract) error {
	return xerrors.ErrUnsupportedMethod.Derive("%s pricing of %s %s", m, c.Exercise, c.Category).
		WithContext("method", m.String()).
		WithContext("category", c.Category.String())
}

// sumLegs 按权重累加各腿的估值，标准误按独立估计合并。
func sumLegs(ctx context.Context, p Pricer, c contract.Contract) (Estimate, error) {
	var est Estimate
	variance := 0.0
	for i, l := range c.Legs {
		leg, err := p.Price(ctx, c.Leg(i))
		if err != nil {
			return Estimate{}, err
		}
		est.Value += l.Weight * leg.Value
		variance += l.Weight * l.Weight * leg.StdErr * leg.StdErr
		est.Paths += leg.Paths
		est.Seed = leg.Seed
	}
	est.StdErr = math.Sqrt(variance)
	return est, nil
}
