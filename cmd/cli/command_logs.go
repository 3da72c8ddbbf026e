package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogsCmd(cc *cliContext) *cobra.Command {
	var follow bool
	var stream string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the backend's retained output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch stream {
			case "", "stdout", "stderr":
			default:
				return fmt.Errorf("--stream must be stdout or stderr, got %q", stream)
			}
			return cc.client().logs(cmd.Context(), cmd.OutOrStdout(), stream, follow)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream output until the backend exits")
	cmd.Flags().StringVar(&stream, "stream", "", "Only show stdout or stderr")
	return cmd
}
