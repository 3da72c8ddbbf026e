package paths

import "path/filepath"

// BackendBinaryName is the packaged backend executable.
const BackendBinaryName = "psi-backend"

// PlatformTable maps a GOOS value to its backend candidate list.
// Platforms without an entry resolve to NotFound.
type PlatformTable map[string]func(Layout) []string

// DefaultPlatformTable supports the bundled macOS layout and the equivalent
// Linux layout. Windows packaging does not ship the backend yet.
func DefaultPlatformTable() PlatformTable {
	return PlatformTable{
		"darwin": unixBackendCandidates,
		"linux":  unixBackendCandidates,
	}
}

func unixBackendCandidates(layout Layout) []string {
	return []string{
		filepath.Join(layout.ResourceRoot, "backend", BackendBinaryName),
		filepath.Join(layout.ExecutableDir, "..", "backend", BackendBinaryName),
	}
}

// DefaultResourceRoot derives the installed resource directory from the
// executable's directory: Contents/Resources inside a macOS bundle, a sibling
// resources directory elsewhere.
func DefaultResourceRoot(platform, executableDir string) string {
	if platform == "darwin" {
		return filepath.Join(executableDir, "..", "Resources")
	}
	return filepath.Join(executableDir, "resources")
}
