package main

import (
	"github.com/spf13/cobra"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/config"
)

// cliContext carries the persistent flags.
type cliContext struct {
	addr       string
	configPath string
	mode       string
	json       bool
}

func (c *cliContext) client() *client {
	return newClient(c.addr)
}

// config loads the launcher configuration the same way the launcher does,
// applying --mode last.
func (c *cliContext) config() (*config.Config, error) {
	cfg, _, _, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.mode != "" {
		m, err := lib.ParseEnvironmentMode(c.mode)
		if err != nil {
			return nil, err
		}
		cfg.Mode = m.String()
	}
	return cfg, nil
}

func NewRootCmd() *cobra.Command {
	ctx := &cliContext{}

	root := &cobra.Command{
		Use:           "psictl",
		Short:         "Inspect and control the PSI forecast launcher",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&ctx.addr, "addr", "", "Launcher diagnostics address (default $PSICTL_ADDRESS or "+defaultAddress+")")
	root.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path")
	root.PersistentFlags().StringVar(&ctx.mode, "mode", "", "Override the environment mode (development or production)")
	root.PersistentFlags().BoolVar(&ctx.json, "json", false, "Print JSON instead of tables")

	root.AddCommand(newStatusCmd(ctx))
	root.AddCommand(newLogsCmd(ctx))
	root.AddCommand(newStartCmd(ctx))
	root.AddCommand(newStopCmd(ctx))
	root.AddCommand(newShutdownCmd(ctx))
	root.AddCommand(newResolveCmd(ctx))
	root.AddCommand(newEnvCmd(ctx))
	root.AddCommand(newProbeCmd(ctx))
	root.AddCommand(newDoctorCmd(ctx))

	return root
}
