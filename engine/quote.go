package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/pricer"
)

// QuoteDecimals 报价保留的小数位数。
const QuoteDecimals = 6

// Quote 对外展示的报价，价格与标准误以十进制定点数表示。
type Quote struct {
	RequestID string            `json:"request_id"`
	Category  contract.Category `json:"category"`
	Method    pricer.Method     `json:"method"`
	Price     decimal.Decimal   `json:"price"`
	StdErr    decimal.Decimal   `json:"std_err"`
	Paths     int               `json:"paths,omitempty"`
	Seed      uint64            `json:"seed,omitempty"`
}

// Quote 以指定方法定价并生成报价。
func (e *Engine) Quote(ctx context.Context, c contract.Contract, m pricer.Method) (Quote, error) {
	est, err := e.PriceWith(ctx, c, m)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		RequestID: uuid.NewString(),
		Category:  c.Category,
		Method:    m,
		Price:     decimal.NewFromFloat(est.Value).Round(QuoteDecimals),
		StdErr:    decimal.NewFromFloat(est.StdErr).Round(QuoteDecimals),
		Paths:     est.Paths,
		Seed:      est.Seed,
	}, nil
}
