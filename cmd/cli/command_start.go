package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func newStartCmd(cc *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the backend again after it stopped or failed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// readiness can take the whole attempt budget
			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Minute)
			defer cancel()

			resp, err := cc.client().action(ctx, "/start")
			if err != nil {
				return err
			}
			return reportAction(cmd, cc, resp)
		},
	}
	return cmd
}
