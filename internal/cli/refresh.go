package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hydrowatch/internal/app"
)

var (
	refreshStart string
	refreshEnd   string
	refreshForce bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one dashboard refresh round and print the datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.RefreshOptions{Force: refreshForce}

		if refreshStart != "" {
			start, err := time.Parse("2006-01-02", refreshStart)
			if err != nil {
				return fmt.Errorf("invalid --start value: %w", err)
			}
			opts.Start = start
		}

		if refreshEnd != "" {
			end, err := time.Parse("2006-01-02", refreshEnd)
			if err != nil {
				return fmt.Errorf("invalid --end value: %w", err)
			}
			opts.End = end
		}

		return getApp().Refresh(cmd.Context(), opts)
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshStart, "start", "", "Range start date (YYYY-MM-DD, defaults to today)")
	refreshCmd.Flags().StringVar(&refreshEnd, "end", "", "Range end date (YYYY-MM-DD, defaults to today)")
	refreshCmd.Flags().BoolVar(&refreshForce, "force", false, "Fetch all datasets regardless of cache freshness")
}
