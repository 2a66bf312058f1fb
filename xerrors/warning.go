package xerrors

import "fmt"

// WarningKind 非致命数值告警的种类。
type WarningKind string

const (
	// WarnNonFinite 中间价格出现 NaN 或 Inf。
	WarnNonFinite WarningKind = "non_finite_price"
	// WarnFlatSampling 扫描区间内价格几乎没有变化，导数估计退化。
	WarnFlatSampling WarningKind = "flat_sampling"
)

// Warning 数值告警 (NumericalWarning)，随结果一并返回，不中断计算。
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Param   string      `json:"param"`
	Value   float64     `json:"value"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("NumericalWarning[%s] %s=%g: %s", w.Kind, w.Param, w.Value, w.Message)
}
