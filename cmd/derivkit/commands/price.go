package commands

import (
	"github.com/spf13/cobra"

	"github.com/wyfcoding/derivkit/pricer"
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Price a contract",
	Long: `Price a contract with its routed method or an explicit --method.
The quote carries the standard error and, for Monte Carlo, the seed used.`,
	RunE: runPrice,
}

var payoffCmd = &cobra.Command{
	Use:   "payoff",
	Short: "Payoff if the underlying stays at its current spot",
	RunE:  runPayoff,
}

func init() {
	rootCmd.AddCommand(priceCmd, payoffCmd)
}

func runPrice(cmd *cobra.Command, _ []string) error {
	c, err := loadContract(contractFile)
	if err != nil {
		return err
	}
	m, ok, err := method()
	if err != nil {
		return err
	}
	if !ok {
		m = pricer.Route(c)
	}
	q, err := eng.Quote(cmd.Context(), c, m)
	if err != nil {
		return err
	}
	return printJSON(cmd, q)
}

func runPayoff(cmd *cobra.Command, _ []string) error {
	c, err := loadContract(contractFile)
	if err != nil {
		return err
	}
	v, err := eng.Payoff(c)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]any{"category": c.Category, "payoff": v})
}
