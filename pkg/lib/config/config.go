package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/environment"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/paths"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/readiness"
)

// Paths locates the installation and the data directory.
type Paths struct {
	ResourceRoot   string `toml:"resource_root" yaml:"resource_root"`
	ExecutableDir  string `toml:"executable_dir" yaml:"executable_dir"`
	ProjectRoot    string `toml:"project_root" yaml:"project_root"`
	DataDir        string `toml:"data_dir" yaml:"data_dir"`
	FrontendDevURL string `toml:"frontend_dev_url" yaml:"frontend_dev_url"`
}

// Backend configures the owned backend process.
type Backend struct {
	HealthURL   string   `toml:"health_url" yaml:"health_url"`
	Args        []string `toml:"args" yaml:"args"`
	StopGraceMS int      `toml:"stop_grace_ms" yaml:"stop_grace_ms"`
}

// Readiness configures the startup poll.
type Readiness struct {
	MaxAttempts      int `toml:"max_attempts" yaml:"max_attempts"`
	IntervalMS       int `toml:"interval_ms" yaml:"interval_ms"`
	RequestTimeoutMS int `toml:"request_timeout_ms" yaml:"request_timeout_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	File   string `toml:"file" yaml:"file"`
}

// Diagnostics configures the local status server.
type Diagnostics struct {
	Bind    string `toml:"bind" yaml:"bind"`
	Metrics bool   `toml:"metrics" yaml:"metrics"`
}

// Config encapsulates all configuration values for the launcher.
type Config struct {
	Mode        string      `toml:"mode" yaml:"mode"`
	Paths       Paths       `toml:"paths" yaml:"paths"`
	Backend     Backend     `toml:"backend" yaml:"backend"`
	Readiness   Readiness   `toml:"readiness" yaml:"readiness"`
	Logging     Logging     `toml:"logging" yaml:"logging"`
	Diagnostics Diagnostics `toml:"diagnostics" yaml:"diagnostics"`
}

// DefaultConfigPath returns where the launcher looks for its file when no path is given.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(dir, configDirName, configFileName), nil
}

// Load locates, parses, and validates a configuration file. A missing file is
// not an error: defaults apply and the returned bool is false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := decode(file, resolvedPath, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decode(r io.Reader, path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(r)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	default:
		decoder := toml.NewDecoder(r)
		decoder.DisallowUnknownFields()
		return decoder.Decode(cfg)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(configFileName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnvironmentMode returns the settled mode. It is only meaningful after Load.
func (c *Config) EnvironmentMode() lib.EnvironmentMode {
	mode, err := lib.ParseEnvironmentMode(c.Mode)
	if err != nil {
		return lib.ModeDevelopment
	}
	return mode
}

// Layout describes the installation for path resolution.
func (c *Config) Layout() paths.Layout {
	return paths.Layout{
		ResourceRoot:  c.Paths.ResourceRoot,
		ExecutableDir: c.Paths.ExecutableDir,
		ProjectRoot:   c.Paths.ProjectRoot,
		Platform:      runtime.GOOS,
		DevServerURL:  c.Paths.FrontendDevURL,
	}
}

// DataDirs returns the backend data directory per mode. An explicit data_dir
// applies to both.
func (c *Config) DataDirs() environment.DataDirs {
	if c.Paths.DataDir != "" {
		return environment.DataDirs{Development: c.Paths.DataDir, Production: c.Paths.DataDir}
	}
	return environment.DataDirs{
		Development: filepath.Join(c.Paths.ProjectRoot, "backend", "data"),
		Production:  filepath.Join(c.Paths.ResourceRoot, "data"),
	}
}

// ReadinessPolicy converts the readiness section.
func (c *Config) ReadinessPolicy() readiness.Policy {
	return readiness.Policy{
		MaxAttempts:    c.Readiness.MaxAttempts,
		Interval:       time.Duration(c.Readiness.IntervalMS) * time.Millisecond,
		RequestTimeout: time.Duration(c.Readiness.RequestTimeoutMS) * time.Millisecond,
	}
}

// StopGrace is how long the backend may take to exit after SIGTERM.
func (c *Config) StopGrace() time.Duration {
	return time.Duration(c.Backend.StopGraceMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
