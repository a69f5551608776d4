// Package stage implements the generation stages of the documentation
// workflow. Every stage converts the interview transcript into a persisted
// artifact and reports a typed result; stage errors never propagate past
// the stage boundary.
package stage

import (
	"context"
	"time"

	"specsmith/pkg/artifact"
	"specsmith/pkg/proto"
)

// Result is the settled outcome of one stage run. Exactly one of Artifact
// and Err is meaningful: a nil Err means Artifact points at a written file.
type Result struct {
	Step     string
	Artifact *artifact.Ref
	Err      error
	Duration time.Duration
}

// Failed reports whether the stage ended in error.
func (r Result) Failed() bool { return r.Err != nil }

// Input carries everything a stage needs for one run.
type Input struct {
	SessionID  string
	Group      string
	ChatTitle  string
	Transcript proto.Transcript
}

// Stage is the uniform generation stage contract.
type Stage interface {
	// Step returns the workflow step name this stage fulfills.
	Step() string
	// Generate runs the stage. It never returns a Go error; failures are
	// captured inside the Result.
	Generate(ctx context.Context, in Input) Result
}

// Recorder receives stage observations. Satisfied by the Prometheus
// recorder; nil-safe via the noop implementation.
type Recorder interface {
	ObserveStage(sessionID, stage string, success bool, duration time.Duration)
}

// NoopRecorder discards observations.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStage(string, string, bool, time.Duration) {}
