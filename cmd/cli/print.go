package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib/diagnostics"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func printStatusTable(w io.Writer, st diagnostics.StatusResponse) {
	rows := [][]string{
		{"Mode", st.Mode},
		{"State", strings.ToUpper(st.State)},
	}
	if st.FailureKind != "" {
		rows = append(rows, []string{"Failure", st.FailureKind})
	}
	if st.Failure != "" {
		rows = append(rows, []string{"Detail", st.Failure})
	}
	if st.PID != 0 {
		rows = append(rows, []string{"PID", fmt.Sprint(st.PID)})
	}
	if st.ExecutablePath != "" {
		rows = append(rows, []string{"Executable", st.ExecutablePath})
	}
	if st.DataDir != "" {
		rows = append(rows, []string{"Data directory", st.DataDir})
	}
	rows = append(rows, []string{"Readiness attempts", fmt.Sprint(st.Attempts)})
	rows = appendTime(rows, "Started", st.StartedAt)
	rows = appendTime(rows, "Ready", st.ReadyAt)
	rows = appendTime(rows, "Exited", st.ExitedAt)
	if st.ExitCode != nil {
		rows = append(rows, []string{"Exit code", fmt.Sprint(*st.ExitCode)})
	}
	if st.ExitSignal != "" {
		rows = append(rows, []string{"Exit signal", st.ExitSignal})
	}
	if st.Frontend != "" {
		rows = append(rows, []string{"Frontend", st.Frontend})
	}
	if st.LastNotification != nil {
		rows = append(rows, []string{"Last notification", st.LastNotification.Message})
	}
	fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, rows, nil))
}

func appendTime(rows [][]string, label string, t *time.Time) [][]string {
	if t == nil {
		return rows
	}
	return append(rows, []string{label, t.Local().Format(time.DateTime)})
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
