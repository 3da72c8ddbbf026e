package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(cc *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the backend supervisor status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			st, err := cc.client().status(ctx)
			if err != nil {
				return err
			}
			if cc.json {
				return writeJSON(cmd, st)
			}
			printStatusTable(cmd.OutOrStdout(), st)
			return nil
		},
	}
	return cmd
}
