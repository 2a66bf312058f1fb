package xerrors

// 错误码分段：4001xx 合约校验，4221xx 数值模型，5001xx 配置。
const (
	CodeInvalidContract = 400100
	CodeModel           = 422100
	CodeConfiguration   = 500100
)

var (
	// ErrNonPositive 参数必须为正。
	ErrNonPositive = New(ErrValidation, 400101, "parameter must be positive", "")
	// ErrNonFinite 参数不是有限数。
	ErrNonFinite = New(ErrValidation, 400102, "parameter must be finite", "")
	// ErrUnsupportedRight 不支持的期权方向。
	ErrUnsupportedRight = New(ErrValidation, 400103, "unsupported option right", "supported: call, put")
	// ErrUnsupportedBarrier 不支持的障碍类型。
	ErrUnsupportedBarrier = New(ErrValidation, 400104, "unsupported barrier type", "supported: up/down x in/out")
	// ErrUnsupportedFrequency 不支持的观察频率。
	ErrUnsupportedFrequency = New(ErrValidation, 400105, "unsupported observation frequency", "")
	// ErrUnsupportedStrikeType 不支持的行权价类型。
	ErrUnsupportedStrikeType = New(ErrValidation, 400106, "unsupported strike type", "supported: fixed, floating")
	// ErrCorrelationRange 相关系数越界。
	ErrCorrelationRange = New(ErrValidation, 400107, "correlation must lie in [-1, 1]", "")
	// ErrMissingLegParameter 组合策略缺少腿参数。
	ErrMissingLegParameter = New(ErrValidation, 400108, "missing strategy leg parameter", "every leg needs a strike and a volatility")
	// ErrUnsupportedMethod 该合约类别不支持所选定价方法。
	ErrUnsupportedMethod = New(ErrValidation, 400109, "pricing method not supported for contract", "")
	// ErrUnsupportedCategory 不支持的合约类别或枚举值。
	ErrUnsupportedCategory = New(ErrValidation, 400110, "unsupported contract category", "")
	// ErrMissingTerms 合约类别所需条款缺失或不合法。
	ErrMissingTerms = New(ErrValidation, 400111, "invalid category terms", "")
	// ErrPriceOutOfBounds 目标价格超出无套利区间，无法反解隐含波动率。
	ErrPriceOutOfBounds = New(ErrValidation, 400112, "price outside no-arbitrage bounds", "")

	// ErrProbabilityRange 格点风险中性概率不在 [0,1]，离散化存在套利。
	ErrProbabilityRange = New(ErrModel, 422101, "risk-neutral probability outside [0, 1]", "")
	// ErrDegenerateFit 有效样本点不足以完成曲线拟合。
	ErrDegenerateFit = New(ErrModel, 422102, "not enough finite points to fit profile", "")
	// ErrRegression 最小二乘回归失败。
	ErrRegression = New(ErrModel, 422103, "least-squares regression failed", "")
	// ErrNoConvergence 迭代求解未收敛。
	ErrNoConvergence = New(ErrModel, 422104, "iterative solver did not converge", "")

	// ErrNonPositiveCount 路径数或步数必须为正。
	ErrNonPositiveCount = New(ErrConfiguration, 500101, "path and step counts must be positive", "")
	// ErrInvalidConfig 引擎配置校验失败。
	ErrInvalidConfig = New(ErrConfiguration, 500102, "invalid engine config", "")
)
