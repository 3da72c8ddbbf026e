package main

import (
	"github.com/spf13/cobra"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/config"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/logging"
)

func newRootCmd() *cobra.Command {
	var configFlag string
	var modeFlag string

	root := &cobra.Command{
		Use:           "psi-launcher",
		Short:         "Desktop host for the PSI forecast backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag, modeFlag)
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			l, err := newLauncher(cfg, logger)
			if err != nil {
				return err
			}
			return l.run(cmd.Context())
		},
	}

	root.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	root.Flags().StringVar(&modeFlag, "mode", "", "Force the environment mode (development or production)")

	return root
}

// loadConfig applies the --mode override after the file and environment.
func loadConfig(path, mode string) (*config.Config, error) {
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if mode != "" {
		m, err := lib.ParseEnvironmentMode(mode)
		if err != nil {
			return nil, err
		}
		cfg.Mode = m.String()
	}
	return cfg, nil
}
