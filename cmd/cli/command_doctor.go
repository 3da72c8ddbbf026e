package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/datastore"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/paths"
)

func newDoctorCmd(cc *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the installation layout and the backend database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.config()
			if err != nil {
				return err
			}
			mode := cfg.EnvironmentMode()
			dataDir := cfg.DataDirs().For(mode)

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			report, inspectErr := datastore.Inspect(ctx, dataDir)
			backend := paths.NewResolver(cfg.Layout()).ResolveBackendExecutable(mode)

			if cc.json {
				view := map[string]any{
					"mode":     mode.String(),
					"backend":  resolutionView(backend),
					"database": report,
				}
				if err := writeJSON(cmd, view); err != nil {
					return err
				}
				return inspectErr
			}

			backendState := "not launched in development"
			if mode == lib.ModeProduction {
				backendState = backend.Outcome.String()
				if backend.Found() {
					backendState = backend.Path
				}
			}

			rows := [][]string{
				{"mode", mode.String()},
				{"backend executable", backendState},
				{"data directory", dataDir},
				{"database", report.Path},
				{"exists", fmt.Sprint(report.Exists)},
			}
			if report.Exists {
				rows = append(rows,
					[]string{"readable", fmt.Sprint(report.Readable)},
					[]string{"size", formatBytes(report.SizeBytes)},
					[]string{"modified", report.ModifiedAt.Format(time.RFC3339)},
					[]string{"quick_check", report.QuickCheck},
					[]string{"tables", fmt.Sprint(len(report.Tables))},
				)
			}
			if report.Error != "" {
				rows = append(rows, []string{"error", report.Error})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Result"}, rows, nil))
			return inspectErr
		},
	}
	return cmd
}
