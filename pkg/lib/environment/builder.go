// Package environment derives the variables the backend needs and prepares its
// data directory. Creating that directory is the only filesystem write the
// launcher performs.
package environment

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
)

const (
	EnvDatabasePath = "DATABASE_PATH"
	EnvDatabaseURL  = "DATABASE_URL"

	// DatabaseFile is the SQLite file the backend keeps inside the data directory.
	DatabaseFile = "psi_forecast.db"
)

// DatabaseURL builds the connection string for a data directory.
func DatabaseURL(dataDir string) string {
	return "sqlite:///" + filepath.Join(dataDir, DatabaseFile)
}

// BackendEnvironment holds the derived variables, keyed by name.
type BackendEnvironment struct {
	DataDir string
	Vars    map[string]string
}

// Merge layers the derived variables over base. Inherited entries are kept;
// only entries for the injected keys are replaced.
func (e BackendEnvironment) Merge(base []string) []string {
	out := make([]string, 0, len(base)+len(e.Vars))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, injected := e.Vars[key]; injected {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(e.Vars))
	for k := range e.Vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+e.Vars[k])
	}
	return out
}

// DataDirs names the data directory for each mode.
type DataDirs struct {
	Development string
	Production  string
}

// For returns the directory configured for mode.
func (d DataDirs) For(mode lib.EnvironmentMode) string {
	if mode == lib.ModeProduction {
		return d.Production
	}
	return d.Development
}

// MkdirAllFunc matches os.MkdirAll.
type MkdirAllFunc func(path string, perm os.FileMode) error

// Builder computes a BackendEnvironment.
type Builder struct {
	dirs     DataDirs
	mkdirAll MkdirAllFunc
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithMkdirAll replaces os.MkdirAll.
func WithMkdirAll(fn MkdirAllFunc) Option {
	return func(b *Builder) {
		b.mkdirAll = fn
	}
}

// WithLogger sets the builder's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a Builder for the given data directories.
func NewBuilder(dirs DataDirs, opts ...Option) *Builder {
	b := &Builder{
		dirs:     dirs,
		mkdirAll: os.MkdirAll,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// DataDir returns the data directory for mode without touching the filesystem.
func (b *Builder) DataDir(mode lib.EnvironmentMode) string {
	return b.dirs.For(mode)
}

// Build resolves the data directory for mode, creates it when absent and
// returns the derived variables. Calling Build again with the directory in
// place yields the same result.
func (b *Builder) Build(mode lib.EnvironmentMode) (BackendEnvironment, error) {
	dir := b.dirs.For(mode)
	if strings.TrimSpace(dir) == "" {
		return BackendEnvironment{}, lib.NewError(lib.KindDirectoryCreation, "data directory is not configured").
			WithContext("mode", mode.String())
	}

	_, statErr := os.Stat(dir)
	if err := b.mkdirAll(dir, 0o755); err != nil {
		return BackendEnvironment{}, lib.NewError(lib.KindDirectoryCreation, "create data directory").
			WithContext("dir", dir).
			WithContext("mode", mode.String()).
			WithCause(err)
	}
	if os.IsNotExist(statErr) {
		b.logger.Info("created data directory", "dir", dir)
	}

	return BackendEnvironment{
		DataDir: dir,
		Vars: map[string]string{
			EnvDatabasePath: dir,
			EnvDatabaseURL:  DatabaseURL(dir),
		},
	}, nil
}
