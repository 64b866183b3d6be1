package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var simulateLevel string

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a test alert for a given water level",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateLevel == "" {
			return fmt.Errorf("--level is required")
		}
		level, err := decimal.NewFromString(simulateLevel)
		if err != nil {
			return fmt.Errorf("invalid --level value: %w", err)
		}
		return getApp().SimulateAlert(cmd.Context(), level)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateLevel, "level", "", "Water level in metres to simulate")
}
