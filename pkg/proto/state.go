package proto

import "fmt"

// Phase is a named stage of the documentation workflow.
type Phase string

const (
	PhaseStart        Phase = "START"
	PhaseInterview    Phase = "INTERVIEW"
	PhaseBranch       Phase = "BRANCH"
	PhaseDiagram      Phase = "DIAGRAM"
	PhaseRequirements Phase = "REQUIREMENTS"
	PhaseMerge        Phase = "MERGE"
	PhaseDocument     Phase = "DOCUMENT"
	PhaseCompleted    Phase = "COMPLETED"
	PhaseError        Phase = "ERROR"
)

func (p Phase) String() string { return string(p) }

// Terminal reports whether the phase ends the workflow.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseError
}

// TransitionTable maps each phase to the phases it may move to.
type TransitionTable map[Phase][]Phase

// ValidTransitions is the fixed shape of the documentation workflow:
// branch fans out to the enabled generation stages, merge joins them,
// and the document phase always reaches a terminal state.
var ValidTransitions = TransitionTable{
	PhaseStart:        {PhaseInterview},
	PhaseInterview:    {PhaseBranch, PhaseError},
	PhaseBranch:       {PhaseDiagram, PhaseRequirements, PhaseMerge, PhaseCompleted},
	PhaseDiagram:      {PhaseMerge},
	PhaseRequirements: {PhaseMerge},
	PhaseMerge:        {PhaseDocument, PhaseCompleted},
	PhaseDocument:     {PhaseCompleted, PhaseError},
}

// CanTransition reports whether the table allows moving from one phase to another.
func (t TransitionTable) CanTransition(from, to Phase) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Step names recorded in WorkflowState.CompletedSteps. These are the
// lower-case identifiers surfaced in workflow results.
const (
	StepStart        = "start"
	StepInterview    = "interview"
	StepBranch       = "branch"
	StepDiagram      = "diagram"
	StepRequirements = "requirements"
	StepMerge        = "merge"
	StepDocument     = "document"
	StepEnd          = "end"
)

// StepForPhase maps a generation phase to its step name.
func StepForPhase(p Phase) (string, error) {
	switch p {
	case PhaseDiagram:
		return StepDiagram, nil
	case PhaseRequirements:
		return StepRequirements, nil
	default:
		return "", fmt.Errorf("phase %s has no branch step", p)
	}
}
