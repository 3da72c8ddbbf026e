package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib/environment"
)

func newEnvCmd(cc *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show the environment the backend would be started with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.config()
			if err != nil {
				return err
			}
			mode := cfg.EnvironmentMode()

			// report only: the data directory is not created here
			builder := environment.NewBuilder(cfg.DataDirs(),
				environment.WithMkdirAll(func(string, os.FileMode) error { return nil }))
			env, err := builder.Build(mode)
			if err != nil {
				return err
			}

			_, statErr := os.Stat(env.DataDir)
			exists := statErr == nil

			if cc.json {
				return writeJSON(cmd, map[string]any{
					"mode":            mode.String(),
					"data_dir":        env.DataDir,
					"data_dir_exists": exists,
					"vars":            env.Vars,
				})
			}

			keys := make([]string, 0, len(env.Vars))
			for k := range env.Vars {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{k, env.Vars[k]})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mode: %s\ndata directory: %s (exists: %t)\n", mode, env.DataDir, exists)
			fmt.Fprintln(out, renderTable([]string{"Variable", "Value"}, rows, nil))
			return nil
		},
	}
	return cmd
}
