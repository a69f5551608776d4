// Package workflow implements the phase orchestrator: the explicit state
// machine that fans the finished interview out to the generation stages,
// joins their results, assembles the final document, and tolerates stage
// failures without losing completed work.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"specsmith/pkg/artifact"
	"specsmith/pkg/document"
	"specsmith/pkg/logx"
	"specsmith/pkg/proto"
	"specsmith/pkg/session"
	"specsmith/pkg/stage"
)

// ErrWorkflowInFlight is returned when a session's workflow is triggered
// while a previous run has not finished.
var ErrWorkflowInFlight = errors.New("workflow already running for this session")

// ErrInterviewIncomplete is returned when the workflow is triggered before
// the interview has been completed.
var ErrInterviewIncomplete = errors.New("interview is not complete")

// Result is the terminal outcome of one workflow run. The workflow always
// reaches a terminal phase; stage failures surface in StageResults and
// FinalError rather than aborting the run.
type Result struct {
	SessionID         string
	Phase             proto.Phase
	CompletedSteps    []string
	StageResults      map[string]stage.Result
	InterviewArtifact artifact.Ref
	DocumentArtifact  *artifact.Ref
	Message           string
	FinalError        string
}

// TranscriptWriter persists the interview artifact. Satisfied by
// interview.TranscriptWriter.
type TranscriptWriter interface {
	Write(ctx context.Context, state *session.State, group, chatTitle string) (artifact.Ref, error)
}

// Identity resolves the group and title that scope artifact paths.
// Satisfied by identity.Directory.
type Identity interface {
	GroupName(ctx context.Context, username string) string
	ChatTitle(ctx context.Context, sessionID, username string) string
}

// Recorder receives workflow observations.
type Recorder interface {
	ObserveWorkflow(sessionID string, success bool)
}

type noopRecorder struct{}

func (noopRecorder) ObserveWorkflow(string, bool) {}

// Flags is the static stage enablement read once at startup.
type Flags struct {
	DisableDiagram      bool
	DisableRequirements bool
	DisableReview       bool
}

// Orchestrator drives the documentation workflow for completed interviews.
type Orchestrator struct {
	sessions   *session.Manager
	identity   Identity
	transcript TranscriptWriter
	stages     []stage.Stage
	assembler  *document.Assembler
	reviewer   *document.Reviewer
	flags      Flags
	recorder   Recorder
	logger     *logx.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewOrchestrator wires the workflow. The stages slice should contain the
// diagram and requirements stages; flags decide which of them run.
func NewOrchestrator(
	sessions *session.Manager,
	identity Identity,
	transcript TranscriptWriter,
	stages []stage.Stage,
	assembler *document.Assembler,
	reviewer *document.Reviewer,
	flags Flags,
	recorder Recorder,
) *Orchestrator {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Orchestrator{
		sessions:   sessions,
		identity:   identity,
		transcript: transcript,
		stages:     stages,
		assembler:  assembler,
		reviewer:   reviewer,
		flags:      flags,
		recorder:   recorder,
		logger:     logx.NewLogger("workflow"),
		inFlight:   make(map[string]struct{}),
	}
}

// enabledSteps computes the branch fan-out from static enablement.
func (o *Orchestrator) enabledSteps() []string {
	var steps []string
	for _, s := range o.stages {
		switch s.Step() {
		case proto.StepDiagram:
			if !o.flags.DisableDiagram {
				steps = append(steps, s.Step())
			}
		case proto.StepRequirements:
			if !o.flags.DisableRequirements {
				steps = append(steps, s.Step())
			}
		}
	}
	return steps
}

func (o *Orchestrator) acquire(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[sessionID]; busy {
		return false
	}
	o.inFlight[sessionID] = struct{}{}
	return true
}

func (o *Orchestrator) release(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, sessionID)
}

// Run executes the documentation workflow for a session. A second trigger
// while a run is in flight returns ErrWorkflowInFlight. The returned
// Result is terminal: stage failures are aggregated, never propagated.
func (o *Orchestrator) Run(ctx context.Context, sessionID string) (Result, error) {
	if !o.acquire(sessionID) {
		return Result{}, ErrWorkflowInFlight
	}
	defer o.release(sessionID)

	state := o.sessions.Load(ctx, sessionID, "")
	if !state.IsComplete {
		return Result{}, ErrInterviewIncomplete
	}

	result := o.run(ctx, state)
	o.recorder.ObserveWorkflow(sessionID, result.FinalError == "")
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, state *session.State) Result {
	sessionID := state.SessionID
	result := Result{
		SessionID:    sessionID,
		Phase:        proto.PhaseStart,
		StageResults: make(map[string]stage.Result),
	}
	var stageErrors []string

	group := o.identity.GroupName(ctx, state.Username)
	chatTitle := o.identity.ChatTitle(ctx, sessionID, state.Username)

	o.transition(&result, proto.PhaseInterview)
	result.CompletedSteps = append(result.CompletedSteps, proto.StepStart)

	// Interview phase: persist the transcript artifact every later stage
	// builds on. Failure here degrades the run but does not stop it; the
	// document phase reports the missing precondition explicitly.
	interviewRef, err := o.transcript.Write(ctx, state, group, chatTitle)
	if err != nil {
		o.logger.Warn("interview artifact write failed for session %s: %v", sessionID, err)
		stageErrors = append(stageErrors, fmt.Sprintf("interview: %v", err))
	} else {
		result.InterviewArtifact = interviewRef
		result.CompletedSteps = append(result.CompletedSteps, proto.StepInterview)
	}

	// Branch phase: fan out to the enabled generation stages.
	o.transition(&result, proto.PhaseBranch)
	nextSteps := o.enabledSteps()
	result.CompletedSteps = append(result.CompletedSteps, proto.StepBranch)
	o.logger.Debug("Session %s branch fan-out: %v", sessionID, nextSteps)

	in := stage.Input{
		SessionID:  sessionID,
		Group:      group,
		ChatTitle:  chatTitle,
		Transcript: state.Transcript,
	}
	settled := o.runStages(ctx, nextSteps, in)

	// Merge phase: the join proceeds only once every branch has settled;
	// an errored branch counts as done.
	o.transition(&result, proto.PhaseMerge)
	for _, step := range nextSteps {
		res, ok := settled[step]
		if !ok {
			// Contract violation: a branch vanished without settling.
			res = stage.Result{Step: step, Err: fmt.Errorf("stage %s never settled", step)}
		}
		result.StageResults[step] = res
		if res.Failed() {
			stageErrors = append(stageErrors, fmt.Sprintf("%s: %v", step, res.Err))
		} else {
			result.CompletedSteps = append(result.CompletedSteps, step)
		}
	}
	result.CompletedSteps = append(result.CompletedSteps, proto.StepMerge)

	// Document phase runs only when at least one generation stage was
	// enabled; with nothing generated the workflow ends at the merge.
	if len(nextSteps) > 0 {
		o.transition(&result, proto.PhaseDocument)
		o.document(ctx, &result, group, chatTitle, &stageErrors)
	}

	o.transition(&result, proto.PhaseCompleted)
	result.CompletedSteps = append(result.CompletedSteps, proto.StepEnd)

	if len(stageErrors) > 0 {
		result.FinalError = strings.Join(stageErrors, "; ")
		o.logger.Warn("Session %s workflow completed with errors: %s", sessionID, result.FinalError)
	} else {
		o.logger.Info("Session %s workflow completed cleanly", sessionID)
	}
	if result.Message == "" {
		result.Message = o.finalMessage(&result)
	}
	return result
}

// runStages executes the enabled stages as independent concurrent tasks
// and gathers results only once all of them settle. One task's failure
// never cancels a sibling: each task gets the parent context untouched.
func (o *Orchestrator) runStages(ctx context.Context, steps []string, in stage.Input) map[string]stage.Result {
	settled := make(map[string]stage.Result, len(steps))
	if len(steps) == 0 {
		return settled
	}

	enabled := make(map[string]bool, len(steps))
	for _, s := range steps {
		enabled[s] = true
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, s := range o.stages {
		if !enabled[s.Step()] {
			continue
		}
		wg.Add(1)
		go func(s stage.Stage) {
			defer wg.Done()
			res := o.runStage(ctx, s, in)
			mu.Lock()
			settled[s.Step()] = res
			mu.Unlock()
		}(s)
	}
	wg.Wait()
	return settled
}

// runStage isolates a single stage run, converting panics into stage
// errors so a contract violation in one branch cannot take down siblings.
func (o *Orchestrator) runStage(ctx context.Context, s stage.Stage, in stage.Input) (res stage.Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("stage %s panicked for session %s: %v", s.Step(), in.SessionID, r)
			res = stage.Result{Step: s.Step(), Err: fmt.Errorf("stage panic: %v", r)}
		}
	}()
	start := time.Now()
	res = s.Generate(ctx, in)
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}
	return res
}

// document runs assembly and the optional review pass.
func (o *Orchestrator) document(ctx context.Context, result *Result, group, chatTitle string, stageErrors *[]string) {
	var diagramRef *artifact.Ref
	if res, ok := result.StageResults[proto.StepDiagram]; ok && !res.Failed() {
		diagramRef = res.Artifact
	}

	assembled, err := o.assembler.Assemble(ctx, result.SessionID, group, chatTitle, result.InterviewArtifact, diagramRef)
	if err != nil {
		*stageErrors = append(*stageErrors, fmt.Sprintf("document: %v", err))
		return
	}

	finalRef := assembled.Ref
	message := assembled.Message
	if !o.flags.DisableReview {
		review := o.reviewer.Review(ctx, result.SessionID, group, chatTitle, finalRef)
		finalRef = review.Ref
		if review.Improved {
			message += " The document was improved by review."
		} else {
			o.logger.Info("Review kept the original document: %s", review.Reason)
		}
	}

	result.DocumentArtifact = &finalRef
	result.Message = message
	result.CompletedSteps = append(result.CompletedSteps, proto.StepDocument)
}

func (o *Orchestrator) finalMessage(result *Result) string {
	if result.FinalError != "" {
		return "The documentation workflow finished with errors; completed artifacts were kept."
	}
	return "The documentation workflow finished."
}

// transition moves the run to the next phase, enforcing the transition
// table. An illegal transition is a programming error: it is logged and
// the run is forced into the error phase.
func (o *Orchestrator) transition(result *Result, to proto.Phase) {
	from := result.Phase
	if !proto.ValidTransitions.CanTransition(from, to) {
		o.logger.Error("illegal phase transition %s -> %s for session %s", from, to, result.SessionID)
		result.Phase = proto.PhaseError
		return
	}
	o.logger.DebugState(result.SessionID, from.String(), to.String())
	result.Phase = to
}
