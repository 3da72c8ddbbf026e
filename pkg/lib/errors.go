package lib

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind identifies a category of launcher failure.
type ErrorKind string

const (
	KindPathNotFound       ErrorKind = "PATH_NOT_FOUND"
	KindSpawnFailure       ErrorKind = "SPAWN_FAILURE"
	KindHealthCheckTimeout ErrorKind = "HEALTH_CHECK_TIMEOUT"
	KindUnexpectedExit     ErrorKind = "UNEXPECTED_EXIT"
	KindDirectoryCreation  ErrorKind = "DIRECTORY_CREATION_FAILURE"
	KindAlreadyRunning     ErrorKind = "ALREADY_RUNNING"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrPathNotFound       = &Error{Kind: KindPathNotFound}
	ErrSpawnFailure       = &Error{Kind: KindSpawnFailure}
	ErrHealthCheckTimeout = &Error{Kind: KindHealthCheckTimeout}
	ErrUnexpectedExit     = &Error{Kind: KindUnexpectedExit}
	ErrDirectoryCreation  = &Error{Kind: KindDirectoryCreation}
	ErrAlreadyRunning     = &Error{Kind: KindAlreadyRunning}
)

// Error carries a failure kind together with the context needed to diagnose it
// without reproducing (attempted paths, mode, attempt counts).
type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]any
	Cause   error
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithContext adds a diagnostic key/value pair.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithCause records the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(e.Kind))
	b.WriteString("]")
	if e.Message != "" {
		b.WriteString(" ")
		b.WriteString(e.Message)
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		b.WriteString("; ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if e.Cause != nil {
		b.WriteString("; cause: ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil && len(t.Context) == 0
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsFatal reports whether err must abort startup. Only a missing data directory qualifies;
// every other failure leaves the application running in a degraded state.
func IsFatal(err error) bool {
	return KindOf(err) == KindDirectoryCreation
}
