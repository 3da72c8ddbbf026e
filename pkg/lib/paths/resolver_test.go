package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib"
)

func existsIn(set ...string) ExistsFunc {
	m := make(map[string]bool, len(set))
	for _, s := range set {
		m[filepath.Clean(s)] = true
	}
	return func(path string) bool { return m[filepath.Clean(path)] }
}

func testLayout() Layout {
	return Layout{
		ResourceRoot:  "/res",
		ExecutableDir: "/app/MacOS",
		ProjectRoot:   "/src/psi",
		Platform:      "darwin",
	}
}

func TestResolve_FirstExistingCandidateWins(t *testing.T) {
	res := Resolve([]string{"/a", "/b", "/c"}, existsIn("/b", "/c"))
	assert.Equal(t, Found, res.Outcome)
	assert.Equal(t, "/b", res.Path)
	assert.Equal(t, []string{"/a", "/b"}, res.Tried)
}

func TestResolve_NoneExist(t *testing.T) {
	res := Resolve([]string{"/a", "/b"}, existsIn())
	assert.Equal(t, NotFound, res.Outcome)
	assert.Empty(t, res.Path)
	assert.Equal(t, []string{"/a", "/b"}, res.Tried)
}

func TestResolveBackend_ProductionPrimaryCandidate(t *testing.T) {
	r := NewResolver(testLayout(), WithExists(existsIn("/res/backend/psi-backend")))

	res := r.ResolveBackendExecutable(lib.ModeProduction)
	require.True(t, res.Found())
	assert.Equal(t, "/res/backend/psi-backend", res.Path)
}

func TestResolveBackend_ProductionFallsBackToExecutableRelative(t *testing.T) {
	r := NewResolver(testLayout(), WithExists(existsIn("/app/backend/psi-backend")))

	res := r.ResolveBackendExecutable(lib.ModeProduction)
	require.True(t, res.Found())
	assert.Equal(t, filepath.Join("/app/MacOS", "..", "backend", "psi-backend"), res.Path)
	assert.Len(t, res.Tried, 2)
}

func TestResolveBackend_ProductionNotFound(t *testing.T) {
	r := NewResolver(testLayout(), WithExists(existsIn()))

	res := r.ResolveBackendExecutable(lib.ModeProduction)
	assert.Equal(t, NotFound, res.Outcome)
	assert.Empty(t, res.Path)
	assert.Len(t, res.Tried, 2)
}

func TestResolveBackend_DevelopmentNeverResolves(t *testing.T) {
	r := NewResolver(testLayout(), WithExists(func(string) bool { return true }))

	res := r.ResolveBackendExecutable(lib.ModeDevelopment)
	assert.Equal(t, NotFound, res.Outcome)
	assert.Empty(t, res.Tried)
}

func TestResolveBackend_UnsupportedPlatform(t *testing.T) {
	layout := testLayout()
	layout.Platform = "windows"
	r := NewResolver(layout, WithExists(func(string) bool { return true }))

	res := r.ResolveBackendExecutable(lib.ModeProduction)
	assert.Equal(t, NotFound, res.Outcome)
	assert.Empty(t, res.Tried)
}

func TestResolveBackend_CustomPlatformTable(t *testing.T) {
	layout := testLayout()
	layout.Platform = "windows"
	table := PlatformTable{
		"windows": func(l Layout) []string { return []string{filepath.Join(l.ResourceRoot, "backend", "psi-backend.exe")} },
	}
	r := NewResolver(layout, WithPlatformTable(table), WithExists(existsIn("/res/backend/psi-backend.exe")))

	res := r.ResolveBackendExecutable(lib.ModeProduction)
	require.True(t, res.Found())
	assert.Equal(t, "/res/backend/psi-backend.exe", res.Path)
}

// A resolved backend path must exist at call time, for every mode.
func TestResolveBackend_NeverReturnsMissingPath(t *testing.T) {
	dir := t.TempDir()
	layout := Layout{ResourceRoot: dir, ExecutableDir: filepath.Join(dir, "bin"), ProjectRoot: dir, Platform: "linux"}
	r := NewResolver(layout)

	for _, mode := range []lib.EnvironmentMode{lib.ModeDevelopment, lib.ModeProduction} {
		res := r.ResolveBackendExecutable(mode)
		assert.Equal(t, NotFound, res.Outcome, mode.String())
	}

	exe := filepath.Join(dir, "backend", BackendBinaryName)
	require.NoError(t, os.MkdirAll(filepath.Dir(exe), 0o755))
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	for _, mode := range []lib.EnvironmentMode{lib.ModeDevelopment, lib.ModeProduction} {
		res := r.ResolveBackendExecutable(mode)
		if res.Found() {
			_, err := os.Stat(res.Path)
			assert.NoError(t, err, mode.String())
		}
	}
	assert.True(t, r.ResolveBackendExecutable(lib.ModeProduction).Found())
}

func TestFileExists_RejectsDirectories(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, FileExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))

	file := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(file, []byte("<html>"), 0o644))
	assert.True(t, FileExists(file))
}

func TestResolveFrontend_DevelopmentIsFixed(t *testing.T) {
	r := NewResolver(testLayout(), WithExists(existsIn()))

	res := r.ResolveFrontend(lib.ModeDevelopment)
	assert.Equal(t, Found, res.Outcome)
	assert.Equal(t, "/src/psi/dist/index.html", res.Path)
}

func TestResolveFrontend_ProductionBundle(t *testing.T) {
	r := NewResolver(testLayout(), WithExists(existsIn("/res/app/index.html")))

	res := r.ResolveFrontend(lib.ModeProduction)
	assert.Equal(t, Found, res.Outcome)
	assert.Equal(t, "/res/app/index.html", res.Location())
}

func TestResolveFrontend_ProductionSecondaryBundle(t *testing.T) {
	r := NewResolver(testLayout(), WithExists(existsIn("/app/app/index.html")))

	res := r.ResolveFrontend(lib.ModeProduction)
	assert.Equal(t, Found, res.Outcome)
	assert.Equal(t, filepath.Join("/app/MacOS", "..", "app", "index.html"), res.Path)
}

func TestResolveFrontend_ProductionFallsBackToRemote(t *testing.T) {
	layout := testLayout()
	layout.DevServerURL = "http://localhost:9999"
	r := NewResolver(layout, WithExists(existsIn()))

	res := r.ResolveFrontend(lib.ModeProduction)
	assert.Equal(t, FoundRemote, res.Outcome)
	assert.Equal(t, "http://localhost:9999", res.Location())
	assert.Len(t, res.Tried, 2)
}

func TestNewResolver_Defaults(t *testing.T) {
	r := NewResolver(Layout{})
	assert.NotEmpty(t, r.Layout().Platform)
	assert.Equal(t, DefaultDevServerURL, r.Layout().DevServerURL)
}

func TestDefaultResourceRoot(t *testing.T) {
	assert.Equal(t, filepath.Join("/Apps/PSI.app/Contents/MacOS", "..", "Resources"),
		DefaultResourceRoot("darwin", "/Apps/PSI.app/Contents/MacOS"))
	assert.Equal(t, filepath.Join("/opt/psi", "resources"), DefaultResourceRoot("linux", "/opt/psi"))
}
