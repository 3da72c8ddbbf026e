// Package datastore inspects the backend's SQLite database without writing to it.
package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib/environment"
)

// Report describes the database found in a data directory.
type Report struct {
	Path       string    `json:"path"`
	Exists     bool      `json:"exists"`
	Readable   bool      `json:"readable"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitzero"`
	QuickCheck string    `json:"quick_check,omitempty"`
	Tables     []string  `json:"tables,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Healthy reports whether the database exists, opens and passes quick_check.
func (r Report) Healthy() bool {
	return r.Exists && r.Readable && strings.EqualFold(r.QuickCheck, "ok")
}

// Inspect opens <dataDir>/psi_forecast.db read-only. A missing file yields a
// report with Exists false; it is never created.
func Inspect(ctx context.Context, dataDir string) (Report, error) {
	report := Report{Path: filepath.Join(dataDir, environment.DatabaseFile)}

	info, err := os.Stat(report.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return report, nil
		}
		return report, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return report, fmt.Errorf("database path %q is a directory", report.Path)
	}
	report.Exists = true
	report.SizeBytes = info.Size()
	report.ModifiedAt = info.ModTime()

	db, err := sql.Open("sqlite", readOnlyDSN(report.Path))
	if err != nil {
		return report, fmt.Errorf("open sqlite db: %w", err)
	}
	defer db.Close()

	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(connCtx); err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("ping database: %w", err)
	}
	report.Readable = true

	rows, err := db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			report.Error = err.Error()
			return report, fmt.Errorf("scan table name: %w", err)
		}
		report.Tables = append(report.Tables, name)
	}
	if err := rows.Err(); err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("iterate tables: %w", err)
	}

	if err := db.QueryRowContext(connCtx, "PRAGMA quick_check").Scan(&report.QuickCheck); err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("quick check: %w", err)
	}
	return report, nil
}

func readOnlyDSN(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	q := u.Query()
	q.Set("mode", "ro")
	u.RawQuery = q.Encode()
	return u.String()
}
