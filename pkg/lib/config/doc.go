// Package config loads, normalizes, and validates launcher configuration.
//
// Settings come from built-in defaults, an optional TOML or YAML file and a
// few environment fallbacks (APP_ENV and NODE_ENV select the mode). Paths are
// expanded to absolute form, and the environment mode is settled here: when
// the file leaves it empty, a present resource root means a packaged
// installation and therefore production.
//
// The accessors (Layout, DataDirs, ReadinessPolicy) translate the settings
// into the values the supervisor's components take, so the rest of the
// launcher never reads raw configuration fields.
package config
