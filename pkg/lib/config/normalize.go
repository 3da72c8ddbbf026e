package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib/paths"
)

// executablePath is replaced in tests.
var executablePath = os.Executable

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMode()
	c.normalizeBackend()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	c.Diagnostics.Bind = strings.TrimSpace(c.Diagnostics.Bind)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ExecutableDir) == "" {
		exe, err := executablePath()
		if err != nil {
			return fmt.Errorf("paths.executable_dir: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		c.Paths.ExecutableDir = filepath.Dir(exe)
	}
	if c.Paths.ExecutableDir, err = expandPath(c.Paths.ExecutableDir); err != nil {
		return fmt.Errorf("paths.executable_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ResourceRoot) == "" {
		c.Paths.ResourceRoot = paths.DefaultResourceRoot(runtime.GOOS, c.Paths.ExecutableDir)
	}
	if c.Paths.ResourceRoot, err = expandPath(c.Paths.ResourceRoot); err != nil {
		return fmt.Errorf("paths.resource_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.ProjectRoot) == "" {
		c.Paths.ProjectRoot = defaultProjectRoot
	}
	if c.Paths.ProjectRoot, err = expandPath(c.Paths.ProjectRoot); err != nil {
		return fmt.Errorf("paths.project_root: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	c.Paths.FrontendDevURL = strings.TrimSpace(c.Paths.FrontendDevURL)
	if c.Paths.FrontendDevURL == "" {
		c.Paths.FrontendDevURL = defaultFrontendDevURL
	}
	return nil
}

// normalizeMode settles an empty mode: a development hint in the environment
// wins, otherwise an existing resource root means a packaged installation.
func (c *Config) normalizeMode() {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	switch c.Mode {
	case "dev":
		c.Mode = "development"
	case "prod":
		c.Mode = "production"
	case "":
		if isDevelopmentEnv("APP_ENV") || isDevelopmentEnv("NODE_ENV") {
			c.Mode = "development"
			return
		}
		if info, err := os.Stat(c.Paths.ResourceRoot); err == nil && info.IsDir() {
			c.Mode = "production"
			return
		}
		c.Mode = "development"
	}
}

func isDevelopmentEnv(key string) bool {
	value, ok := os.LookupEnv(key)
	return ok && strings.EqualFold(strings.TrimSpace(value), "development")
}

func (c *Config) normalizeBackend() {
	c.Backend.HealthURL = strings.TrimSpace(c.Backend.HealthURL)
	if c.Backend.HealthURL == "" {
		c.Backend.HealthURL = defaultHealthURL
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Format == "text" {
		c.Logging.Format = "console"
	}
	file, err := expandPath(strings.TrimSpace(c.Logging.File))
	if err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	c.Logging.File = file
	return nil
}
