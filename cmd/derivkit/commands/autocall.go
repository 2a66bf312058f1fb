package commands

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/wyfcoding/derivkit/payoff"
)

var autocallCmd = &cobra.Command{
	Use:   "autocall",
	Short: "Simulate an autocallable note",
	Long: `Simulate an autocallable note and print, per observation date, the
probability of maturing there and of paying the coupon, followed by the
forward, expected maturity, capital-loss probability, price and average
number of coupons paid.`,
	RunE: runAutocall,
}

var impliedPrice float64

var ivCmd = &cobra.Command{
	Use:   "iv",
	Short: "Black-Scholes implied volatility of a European vanilla price",
	RunE:  runImpliedVolatility,
}

func init() {
	rootCmd.AddCommand(autocallCmd, ivCmd)
	ivCmd.Flags().Float64Var(&impliedPrice, "price", 0, "observed option price")
	_ = ivCmd.MarkFlagRequired("price")
}

// autocallOutput 模拟报告的展示形式。
type autocallOutput struct {
	RunID   string                     `json:"run_id"`
	Seed    uint64                     `json:"seed"`
	Paths   int                        `json:"paths"`
	Rows    []payoff.DisplayRow        `json:"observations"`
	Summary map[string]decimal.Decimal `json:"summary"`
}

func runAutocall(cmd *cobra.Command, _ []string) error {
	c, err := loadContract(contractFile)
	if err != nil {
		return err
	}
	r, err := eng.SimulateAutocall(cmd.Context(), c)
	if err != nil {
		return err
	}
	return printJSON(cmd, autocallOutput{
		RunID:   r.RunID,
		Seed:    r.Seed,
		Paths:   r.Paths,
		Rows:    r.Rows(),
		Summary: r.Summary(),
	})
}

func runImpliedVolatility(cmd *cobra.Command, _ []string) error {
	c, err := loadContract(contractFile)
	if err != nil {
		return err
	}
	iv, err := eng.ImpliedVolatility(cmd.Context(), c, impliedPrice)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]float64{"implied_volatility": iv})
}
