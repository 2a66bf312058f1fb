package commands

import (
	"github.com/spf13/cobra"

	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/greeks"
	"github.com/wyfcoding/derivkit/pricer"
)

var greeksCmd = &cobra.Command{
	Use:   "greeks",
	Short: "Compute contract sensitivities",
	Long: `Compute Delta, Gamma, Vega, Theta and Rho; quanto contracts add
Vega (FX), Rho (Foreign) and Rho (Correlation). With --method mc the
standard error of every estimate is printed alongside.`,
	RunE: runGreeks,
}

var (
	profileParam string
	profileOrder string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Sweep one parameter and print the smoothed curve",
	Long: `Sweep spot, volatility, maturity or rate across a grid, fit a least-squares
polynomial and print the fitted value (--order value), slope (first) or
curvature (second) at every grid point. Numerical warnings are included.`,
	RunE: runProfile,
}

func init() {
	rootCmd.AddCommand(greeksCmd, profileCmd)
	profileCmd.Flags().StringVar(&profileParam, "param", "spot", "swept parameter: spot, volatility, maturity, rate")
	profileCmd.Flags().StringVar(&profileOrder, "order", "first", "derivative order: value, first, second")
}

func runGreeks(cmd *cobra.Command, _ []string) error {
	c, err := loadContract(contractFile)
	if err != nil {
		return err
	}
	m, ok, err := method()
	if err != nil {
		return err
	}

	switch {
	case ok && m == pricer.MonteCarlo && c.Exercise == contract.European:
		est, err := eng.MonteCarloGreeks(cmd.Context(), c)
		if err != nil {
			return err
		}
		return printJSON(cmd, est)
	case ok:
		g, err := eng.GreeksWith(cmd.Context(), c, m)
		if err != nil {
			return err
		}
		return printJSON(cmd, g)
	default:
		g, err := eng.Greeks(cmd.Context(), c)
		if err != nil {
			return err
		}
		return printJSON(cmd, g)
	}
}

func runProfile(cmd *cobra.Command, _ []string) error {
	c, err := loadContract(contractFile)
	if err != nil {
		return err
	}
	param, err := contract.ParseParam(profileParam)
	if err != nil {
		return err
	}
	order, err := greeks.ParseOrder(profileOrder)
	if err != nil {
		return err
	}
	curve, err := eng.Profile(cmd.Context(), c, param, order)
	if err != nil {
		return err
	}
	return printJSON(cmd, curve)
}
