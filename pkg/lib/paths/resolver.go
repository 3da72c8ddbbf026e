// Package paths resolves the frontend bundle and backend executable for both
// deployment layouts.
//
// Resolution is an ordered list of candidate paths tried in turn. The first
// candidate that exists wins. Nothing here mutates the filesystem, and the
// existence check is injectable so resolution can be tested without files.
package paths

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
)

// DefaultDevServerURL is where the frontend dev server listens when no bundle is found.
const DefaultDevServerURL = "http://localhost:5173"

// Outcome tags a Resolution.
type Outcome int

const (
	NotFound Outcome = iota
	Found
	FoundRemote
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case FoundRemote:
		return "remote"
	default:
		return "not_found"
	}
}

// Resolution is the result of resolving one asset. Tried lists every candidate
// examined, in order, for diagnostics.
type Resolution struct {
	Outcome Outcome
	Path    string
	Address string
	Tried   []string
}

// Found reports whether a filesystem path was resolved.
func (r Resolution) Found() bool { return r.Outcome == Found }

// Location returns the path or remote address, whichever applies.
func (r Resolution) Location() string {
	if r.Outcome == FoundRemote {
		return r.Address
	}
	return r.Path
}

// ExistsFunc reports whether path names an existing file.
type ExistsFunc func(path string) bool

// FileExists is the default ExistsFunc: it accepts anything that is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Resolve returns the first candidate accepted by exists.
func Resolve(candidates []string, exists ExistsFunc) Resolution {
	res := Resolution{Tried: make([]string, 0, len(candidates))}
	for _, candidate := range candidates {
		res.Tried = append(res.Tried, candidate)
		if exists(candidate) {
			res.Outcome = Found
			res.Path = candidate
			return res
		}
	}
	return res
}

// Layout describes where things live on disk for the running installation.
type Layout struct {
	// ResourceRoot is the installed application's resource directory (production).
	ResourceRoot string
	// ExecutableDir is the directory of the running executable; the secondary production candidates hang off it.
	ExecutableDir string
	// ProjectRoot is the source checkout root (development).
	ProjectRoot string
	// Platform is a GOOS value selecting the backend layout.
	Platform string
	// DevServerURL is the fallback frontend address.
	DevServerURL string
}

// Resolver produces candidates from a Layout and resolves them.
type Resolver struct {
	layout    Layout
	exists    ExistsFunc
	platforms PlatformTable
	logger    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithExists replaces the filesystem existence check.
func WithExists(fn ExistsFunc) Option {
	return func(r *Resolver) {
		r.exists = fn
	}
}

// WithPlatformTable replaces the per-platform backend layouts.
func WithPlatformTable(table PlatformTable) Option {
	return func(r *Resolver) {
		r.platforms = table
	}
}

// WithLogger sets the logger used to report attempted paths.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver for layout.
func NewResolver(layout Layout, opts ...Option) *Resolver {
	if layout.Platform == "" {
		layout.Platform = runtime.GOOS
	}
	if layout.DevServerURL == "" {
		layout.DevServerURL = DefaultDevServerURL
	}
	r := &Resolver{
		layout:    layout,
		exists:    FileExists,
		platforms: DefaultPlatformTable(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Layout returns the layout the resolver was built with.
func (r *Resolver) Layout() Layout { return r.layout }

// FrontendCandidates lists frontend entry points in the order they are tried.
func (r *Resolver) FrontendCandidates(mode lib.EnvironmentMode) []string {
	if mode == lib.ModeDevelopment {
		return []string{filepath.Join(r.layout.ProjectRoot, "dist", "index.html")}
	}
	return []string{
		filepath.Join(r.layout.ResourceRoot, "app", "index.html"),
		filepath.Join(r.layout.ExecutableDir, "..", "app", "index.html"),
	}
}

// BackendCandidates lists backend executables in the order they are tried.
// Development never resolves the backend, so the list is empty there.
func (r *Resolver) BackendCandidates(mode lib.EnvironmentMode) []string {
	if mode == lib.ModeDevelopment {
		return nil
	}
	candidates, ok := r.platforms[r.layout.Platform]
	if !ok {
		return nil
	}
	return candidates(r.layout)
}

// ResolveFrontend resolves the UI entry point. Development returns the fixed
// build path without checking it; production falls back to the dev server
// address when no bundle exists, leaving the final decision to the window.
func (r *Resolver) ResolveFrontend(mode lib.EnvironmentMode) Resolution {
	candidates := r.FrontendCandidates(mode)
	if mode == lib.ModeDevelopment {
		return Resolution{Outcome: Found, Path: candidates[0], Tried: candidates}
	}

	res := Resolve(candidates, r.exists)
	if res.Found() {
		r.logger.Debug("frontend resolved", "path", res.Path, "mode", mode.String())
		return res
	}
	r.logger.Warn("frontend bundle not found, using dev server",
		"tried", res.Tried,
		"address", r.layout.DevServerURL,
		"mode", mode.String(),
	)
	res.Outcome = FoundRemote
	res.Address = r.layout.DevServerURL
	return res
}

// ResolveBackendExecutable resolves the backend binary. The returned path, if
// any, existed at call time; otherwise the Outcome is NotFound.
func (r *Resolver) ResolveBackendExecutable(mode lib.EnvironmentMode) Resolution {
	candidates := r.BackendCandidates(mode)
	res := Resolve(candidates, r.exists)
	if res.Found() {
		r.logger.Info("backend executable resolved", "path", res.Path)
		return res
	}
	if mode == lib.ModeProduction {
		r.logger.Error("backend executable not found",
			"tried", res.Tried,
			"platform", r.layout.Platform,
			"mode", mode.String(),
		)
	}
	return res
}
