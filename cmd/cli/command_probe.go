package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib/readiness"
)

func newProbeCmd(cc *cliContext) *cobra.Command {
	var target string
	var attempts int

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Poll the backend's health endpoint with the configured policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.config()
			if err != nil {
				return err
			}
			if target == "" {
				target = cfg.Backend.HealthURL
			}
			policy := cfg.ReadinessPolicy()
			if attempts > 0 {
				policy.MaxAttempts = attempts
			}

			out := cmd.OutOrStdout()
			observer := func(attempt int, err error) {
				if cc.json {
					return
				}
				if err != nil {
					fmt.Fprintf(out, "attempt %d/%d: %v\n", attempt, policy.MaxAttempts, err)
					return
				}
				fmt.Fprintf(out, "attempt %d/%d: ready\n", attempt, policy.MaxAttempts)
			}

			res, err := readiness.NewHTTPPoller(target, policy, readiness.WithObserver(observer)).AwaitReady(cmd.Context())
			if cc.json {
				view := map[string]any{
					"url":      target,
					"outcome":  res.Outcome.String(),
					"attempts": res.Attempts,
					"elapsed":  res.Elapsed.String(),
				}
				if res.LastErr != nil {
					view["last_error"] = res.LastErr.Error()
				}
				if werr := writeJSON(cmd, view); werr != nil {
					return werr
				}
			} else {
				fmt.Fprintf(out, "%s after %d attempt(s) in %s\n", res.Outcome, res.Attempts, res.Elapsed.Round(1e6))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&target, "url", "", "Health URL (default from configuration)")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "Override the attempt budget")
	return cmd
}
