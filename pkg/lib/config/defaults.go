package config

const (
	defaultProjectRoot      = "."
	defaultFrontendDevURL   = "http://localhost:5173"
	defaultHealthURL        = "http://127.0.0.1:8000/"
	defaultStopGraceMS      = 5000
	defaultMaxAttempts      = 30
	defaultIntervalMS       = 1000
	defaultRequestTimeoutMS = 500
	defaultLogLevel         = "info"
	defaultLogFormat        = "auto"
	defaultDiagnosticsBind  = "127.0.0.1:8799"
	defaultMetricsEnabled   = true

	configDirName  = "psi-forecast"
	configFileName = "launcher.toml"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Paths: Paths{
			ProjectRoot:    defaultProjectRoot,
			FrontendDevURL: defaultFrontendDevURL,
		},
		Backend: Backend{
			HealthURL:   defaultHealthURL,
			StopGraceMS: defaultStopGraceMS,
		},
		Readiness: Readiness{
			MaxAttempts:      defaultMaxAttempts,
			IntervalMS:       defaultIntervalMS,
			RequestTimeoutMS: defaultRequestTimeoutMS,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Diagnostics: Diagnostics{
			Bind:    defaultDiagnosticsBind,
			Metrics: defaultMetricsEnabled,
		},
	}
}
