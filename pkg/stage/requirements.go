package stage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"specsmith/pkg/agent"
	"specsmith/pkg/artifact"
	"specsmith/pkg/logx"
	"specsmith/pkg/prompts"
	"specsmith/pkg/proto"
)

var requiredRequirementSections = []string{
	"Functional Requirements",
	"Non-functional Requirements",
}

var fallbackRequirementTemplates = map[string]string{
	"Functional Requirements": "## Functional Requirements\n\n" +
		"FR-1: The system shall support the workflows described in the stakeholder interview. " +
		"(No specific functional requirements could be extracted; review the interview transcript.)\n",
	"Non-functional Requirements": "## Non-functional Requirements\n\n" +
		"NFR-1: The system shall meet the quality expectations described in the stakeholder interview. " +
		"(No specific non-functional requirements could be extracted; review the interview transcript.)\n",
}

// RequirementsStage extracts categorized requirements from the interview
// transcript.
type RequirementsStage struct {
	llm      *agent.Handle
	writer   *artifact.Writer
	prompts  *prompts.Catalog
	recorder Recorder
	logger   *logx.Logger
}

// NewRequirementsStage creates the requirements extraction stage.
func NewRequirementsStage(llm *agent.Handle, writer *artifact.Writer, promptCatalog *prompts.Catalog, recorder Recorder) *RequirementsStage {
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	return &RequirementsStage{
		llm:      llm,
		writer:   writer,
		prompts:  promptCatalog,
		recorder: recorder,
		logger:   logx.NewLogger("stage"),
	}
}

// Step implements Stage.
func (s *RequirementsStage) Step() string { return proto.StepRequirements }

// Generate implements Stage.
func (s *RequirementsStage) Generate(ctx context.Context, in Input) Result {
	start := time.Now()
	ref, err := s.generate(ctx, in)
	result := Result{Step: s.Step(), Duration: time.Since(start)}
	if err != nil {
		s.logger.Warn("requirements stage failed for session %s: %v", in.SessionID, err)
		result.Err = err
	} else {
		result.Artifact = &ref
	}
	s.recorder.ObserveStage(in.SessionID, s.Step(), err == nil, result.Duration)
	return result
}

func (s *RequirementsStage) generate(ctx context.Context, in Input) (artifact.Ref, error) {
	if len(in.Transcript) == 0 {
		return artifact.Ref{}, fmt.Errorf("empty transcript")
	}

	userPrompt, err := prompts.Render(s.prompts.Requirements.User, map[string]any{
		"Transcript": in.Transcript.Render(),
	})
	if err != nil {
		return artifact.Ref{}, fmt.Errorf("render requirements prompt: %w", err)
	}

	req := agent.NewCompletionRequest([]agent.CompletionMessage{
		agent.NewSystemMessage(s.prompts.Requirements.System),
		agent.NewUserMessage(userPrompt),
	})
	req.SessionID = in.SessionID
	resp, err := s.llm.Complete(ctx, req)
	if err != nil {
		return artifact.Ref{}, fmt.Errorf("requirements generation: %w", err)
	}

	content := resp.Content
	if strings.TrimSpace(content) == "" {
		return artifact.Ref{}, fmt.Errorf("generated requirements content is empty")
	}
	for _, section := range requiredRequirementSections {
		if !strings.Contains(content, section) {
			content += "\n\n" + fallbackRequirementTemplates[section]
		}
	}

	ref, err := s.writer.Write(in.Group, artifact.KindRequirements, in.ChatTitle, content)
	if err != nil {
		return artifact.Ref{}, fmt.Errorf("persist requirements: %w", err)
	}
	return ref, nil
}
