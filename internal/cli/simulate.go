package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var simulateChangePct float64

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Drive one run through a synthetic price move to test alerting",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateChangePct == 0 {
			return errors.New("--change-pct must be non-zero")
		}

		return getApp().SimulateAlert(cmd.Context(), decimal.NewFromFloat(simulateChangePct))
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateChangePct, "change-pct", 0, "Synthetic 24h change percentage")
}
