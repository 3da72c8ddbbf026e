package lib

import (
	"fmt"
	"strings"
	"time"
)

// EnvironmentMode selects the deployment layout. It is fixed for the lifetime of the process.
type EnvironmentMode int

const (
	ModeDevelopment EnvironmentMode = iota
	ModeProduction
)

func (m EnvironmentMode) String() string {
	switch m {
	case ModeDevelopment:
		return "development"
	case ModeProduction:
		return "production"
	default:
		return "unknown"
	}
}

// ParseEnvironmentMode accepts the configuration spelling of a mode ("dev" and "prod" are tolerated).
func ParseEnvironmentMode(value string) (EnvironmentMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "development", "dev":
		return ModeDevelopment, nil
	case "production", "prod":
		return ModeProduction, nil
	default:
		return ModeDevelopment, fmt.Errorf("unknown environment mode %q", value)
	}
}

// ProcessState mirrors the lifecycle of an owned child process.
type ProcessState int

const (
	ProcessStateUnspecified ProcessState = iota
	ProcessStateRunning
	ProcessStateStopped
)

func (s ProcessState) String() string {
	switch s {
	case ProcessStateRunning:
		return "running"
	case ProcessStateStopped:
		return "stopped"
	default:
		return "unspecified"
	}
}

// Command captures the executable, arguments and environment used to start a process.
type Command struct {
	Command string
	Args    []string
	Env     []string
}

// ProcessStatus captures runtime state and timestamps.
// ExitCode and Signal are informational; nothing branches on their values.
type ProcessStatus struct {
	PID       int
	State     ProcessState
	ExitCode  *int
	Signal    string
	StartTime time.Time
	EndTime   *time.Time
}
