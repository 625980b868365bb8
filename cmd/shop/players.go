package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"guardians-shop/internal/infrastructure/rcon"
)

func playersCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "Print how many players are online",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			online, err := rcon.PlayersOnline(ctx, a.rcon)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d players online\n", online, a.cfg.RCON.MaxPlayers)
			return nil
		},
	}
}
