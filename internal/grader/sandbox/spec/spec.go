// Package spec defines the execution specification for one child process.
package spec

import "time"

// RunSpec describes a single command launched inside a workspace.
type RunSpec struct {
	// RequestID groups every process started for one execution request.
	RequestID string
	// TestID labels the step, "compile" or the zero-based case index.
	TestID  string
	WorkDir string
	Cmd     []string
	Env     []string
	// Stdin is written in full and then closed.
	Stdin   string
	Timeout time.Duration
}
