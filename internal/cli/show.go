package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"crypto-price-alerts/internal/app"
)

var (
	moversLimit int
	alertsHours int
	alertsAudit bool
	alertsLimit int
	statsRuns   int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the latest stored price per coin",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context())
	},
}

var moversCmd = &cobra.Command{
	Use:   "movers",
	Short: "Display coins ranked by absolute 24h change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if moversLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().Movers(cmd.Context(), moversLimit)
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Display alert history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertsHours <= 0 {
			return fmt.Errorf("--hours must be greater than zero")
		}
		if alertsLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.AlertsOptions{
			Hours: alertsHours,
			Audit: alertsAudit,
			Limit: alertsLimit,
		}
		return getApp().Alerts(cmd.Context(), opts)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display aggregate statistics and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsRuns <= 0 {
			return fmt.Errorf("--runs must be greater than zero")
		}
		return getApp().Stats(cmd.Context(), statsRuns)
	},
}

func init() {
	moversCmd.Flags().IntVar(&moversLimit, "limit", 5, "Number of coins to display")

	alertsCmd.Flags().IntVar(&alertsHours, "hours", 168, "Lookback window in hours")
	alertsCmd.Flags().BoolVar(&alertsAudit, "audit", false, "List emitted alert records instead of derived history")
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 20, "Number of audit records to display")

	statsCmd.Flags().IntVar(&statsRuns, "runs", 10, "Number of recent runs to display")
}
