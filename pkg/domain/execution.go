package domain

import (
	"strings"
	"time"
)

// Every executed block is framed so plots render off screen and figures do
// not leak between blocks of one session.
const (
	PlotPreamble = "import matplotlib\nmatplotlib.use('Agg')\nimport matplotlib.pyplot as plt\nplt.ioff()"
	PlotEpilogue = "plt.close('all')"
)

// HeadlessPlotting wraps code in PlotPreamble and PlotEpilogue.
func HeadlessPlotting(code string) string {
	return strings.Join([]string{PlotPreamble, code, PlotEpilogue}, "\n") + "\n"
}

// Artifact is a rich result produced by a sandbox besides its logs,
// such as a textual repr or an encoded plot.
type Artifact struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// ExecutionResult is the outcome of running code in a sandbox.
// A result is either a success (stdout plus artifacts) or a failure
// (stderr, traceback or timeout). Sandboxes report failures here instead
// of returning Go errors.
type ExecutionResult struct {
	Stdout    string        `json:"stdout,omitempty"`
	Stderr    string        `json:"stderr,omitempty"`
	Artifacts []Artifact    `json:"artifacts,omitempty"`
	ExitCode  int           `json:"exit_code"`
	TimedOut  bool          `json:"timed_out,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	// Err carries a traceback or an infrastructure failure description.
	Err string `json:"error,omitempty"`
}

// Failed reports whether the execution ended in a failure.
func (r ExecutionResult) Failed() bool {
	return r.TimedOut || r.ExitCode != 0 || r.Err != ""
}

// Failure returns the most specific failure text available.
func (r ExecutionResult) Failure() string {
	if r.Err != "" {
		return r.Err
	}
	return r.Stderr
}

// Code is the code most recently submitted for execution: either a single
// blob or a train/test pair when training is split from inference.
type Code struct {
	Source string `json:"source,omitempty"`
	Train  string `json:"train,omitempty"`
	Test   string `json:"test,omitempty"`
}

// IsSplit reports whether the code is a train/test pair.
func (c Code) IsSplit() bool {
	return c.Train != "" || c.Test != ""
}

// SandboxHandle references the remote execution session owned by a run.
type SandboxHandle struct {
	Backend   string `json:"backend"`
	SessionID string `json:"session_id"`
}
