package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownGroup is returned when a group name does not match any
// configured definition.
var ErrUnknownGroup = errors.New("unknown service group")

// ResolutionError reports that a group definition could not be resolved
// into a ServiceGroupConfig.
type ResolutionError struct {
	Ref string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %q: %v", e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// RuntimeInvocationError reports a failed call to the container runtime.
// ExitCode is -1 when the call did not go through a subprocess or the
// process never exited on its own.
type RuntimeInvocationError struct {
	Command  string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *RuntimeInvocationError) Error() string {
	var b strings.Builder
	switch {
	case e.TimedOut:
		fmt.Fprintf(&b, "command timed out: %q", e.Command)
	case e.ExitCode >= 0:
		fmt.Fprintf(&b, "failed to run command: %q, exited=%d", e.Command, e.ExitCode)
	default:
		fmt.Fprintf(&b, "failed to run command: %q", e.Command)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		fmt.Fprintf(&b, ": %s", stderr)
	} else if e.Err != nil && !e.TimedOut {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RuntimeInvocationError) Unwrap() error { return e.Err }

// ConfigurationError reports a malformed setting read at startup.
type ConfigurationError struct {
	Key   string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("failed to parse %q (value %q), should be a numeric time in seconds: %v", e.Key, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// MutualExclusivityError reports flags that cannot be combined.
type MutualExclusivityError struct {
	Flags []string
}

func (e *MutualExclusivityError) Error() string {
	quoted := make([]string, len(e.Flags))
	for i, f := range e.Flags {
		quoted[i] = "--" + f
	}
	return fmt.Sprintf("%s cannot be used together", strings.Join(quoted, " and "))
}

// GarbageCollectionError reports a failed batched image removal. No image
// is retried or removed selectively after this error.
type GarbageCollectionError struct {
	Group  string
	Images []string
	Err    error
}

func (e *GarbageCollectionError) Error() string {
	return fmt.Sprintf("failed to remove %d image(s) of %q: %v", len(e.Images), e.Group, e.Err)
}

func (e *GarbageCollectionError) Unwrap() error { return e.Err }
