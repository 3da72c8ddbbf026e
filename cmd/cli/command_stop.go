package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib/diagnostics"
)

func newStopCmd(cc *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the backend and leave the launcher running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			resp, err := cc.client().action(ctx, "/stop")
			if err != nil {
				return err
			}
			return reportAction(cmd, cc, resp)
		},
	}
	return cmd
}

func newShutdownCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Stop the backend and exit the launcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			resp, err := cc.client().action(ctx, "/shutdown")
			if err != nil {
				return err
			}
			return reportAction(cmd, cc, resp)
		},
	}
}

// reportAction prints the resulting state. A supervisor error becomes the
// command's error so the exit code reflects it.
func reportAction(cmd *cobra.Command, cc *cliContext, resp diagnostics.ActionResponse) error {
	if cc.json {
		if err := writeJSON(cmd, resp); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), resp.State)
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	return nil
}
