package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProfilesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List supported device profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			profiles, err := client.Profiles(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(profiles))
			for _, profile := range profiles {
				rows = append(rows, []string{profile.ID, profile.Label})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "DEVICE"}, rows, nil))
			return nil
		},
	}
}
