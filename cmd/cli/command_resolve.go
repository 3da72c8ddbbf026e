package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib/paths"
)

func newResolveCmd(cc *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show where the frontend and backend would be loaded from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.config()
			if err != nil {
				return err
			}
			mode := cfg.EnvironmentMode()
			resolver := paths.NewResolver(cfg.Layout())
			frontend := resolver.ResolveFrontend(mode)
			backend := resolver.ResolveBackendExecutable(mode)

			if cc.json {
				return writeJSON(cmd, map[string]any{
					"mode":     mode.String(),
					"platform": runtime.GOOS,
					"frontend": resolutionView(frontend),
					"backend":  resolutionView(backend),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mode: %s (%s)\n\n", mode, runtime.GOOS)
			fmt.Fprintln(out, "frontend:")
			fmt.Fprintln(out, renderCandidates(resolver.FrontendCandidates(mode), frontend))
			fmt.Fprintln(out, "backend:")
			fmt.Fprintln(out, renderCandidates(resolver.BackendCandidates(mode), backend))
			return nil
		},
	}
	return cmd
}

type resolutionJSON struct {
	Outcome  string   `json:"outcome"`
	Location string   `json:"location,omitempty"`
	Tried    []string `json:"tried"`
}

func resolutionView(res paths.Resolution) resolutionJSON {
	return resolutionJSON{Outcome: res.Outcome.String(), Location: res.Location(), Tried: res.Tried}
}

// renderCandidates marks the candidate that won, or the remote fallback.
func renderCandidates(candidates []string, res paths.Resolution) string {
	rows := make([][]string, 0, len(candidates)+1)
	for i, c := range candidates {
		state := "missing"
		if paths.FileExists(c) {
			state = "present"
		}
		mark := ""
		if res.Found() && res.Path == c {
			mark = "selected"
		}
		rows = append(rows, []string{fmt.Sprint(i + 1), c, state, mark})
	}
	if res.Outcome == paths.FoundRemote {
		rows = append(rows, []string{"-", res.Address, "remote", "selected"})
	}
	if len(rows) == 0 {
		return "  (no candidates; the backend is not launched in development)"
	}
	return renderTable([]string{"#", "Candidate", "State", ""}, rows, []columnAlignment{alignRight})
}
