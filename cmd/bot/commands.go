package main

import (
	"fmt"

	"github.com/helixbot/helix-poller/internal/commands"
	"github.com/spf13/cobra"
)

func newMigrateCommandsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-commands",
		Short: "Mark stored moderation triggers such as /ban as system commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := commands.MigrateLegacy(cmd.Context(), store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d command(s) marked as system\n", n)
			return nil
		},
	}
}
