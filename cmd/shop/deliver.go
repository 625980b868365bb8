package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func deliverCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "deliver",
		Short: "Run one delivery pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.deliveryWorker().Tick(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "claimed=%d delivered=%d failed=%d released=%d\n",
				report.Claimed, report.Delivered, report.Failed, report.Released)
			return err
		},
	}
}
