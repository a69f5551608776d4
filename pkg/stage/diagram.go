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

// requiredDiagramSections are the markdown headers every diagram artifact
// must contain. Missing sections get fallback templates instead of failing
// the stage.
var requiredDiagramSections = []string{
	"Class Diagram",
	"Use Case Diagram",
	"Sequence Diagram",
	"Activity Diagram",
}

var fallbackDiagramTemplates = map[string]string{
	"Class Diagram": "## Class Diagram\n```\n@startuml\n" +
		"' Default Class Diagram\n" +
		"class User {\n  +id: String\n  +name: String\n  +email: String\n  +login()\n  +logout()\n}\n\n" +
		"class System {\n  +id: String\n  +name: String\n  +version: String\n  +initialize()\n  +shutdown()\n}\n\n" +
		"User -- System : uses\n@enduml\n```\n",
	"Use Case Diagram": "## Use Case Diagram\n```\n@startuml\n" +
		"' Default Use Case Diagram\n" +
		"left to right direction\nactor User\nactor Admin\n\n" +
		"rectangle System {\n  User -- (Login)\n  User -- (View Dashboard)\n  Admin -- (Manage Users)\n  Admin -- (Configure System)\n  (Login) <.. (Authenticate) : include\n}\n@enduml\n```\n",
	"Sequence Diagram": "## Sequence Diagram\n```\n@startuml\n" +
		"' Default Sequence Diagram\n" +
		"actor User\nparticipant \"Frontend\" as FE\nparticipant \"Backend\" as BE\ndatabase \"Database\" as DB\n\n" +
		"User -> FE: Login Request\nFE -> BE: Authenticate\nBE -> DB: Validate Credentials\nDB --> BE: Return User Data\nBE --> FE: Authentication Result\nFE --> User: Login Response\n@enduml\n```\n",
	"Activity Diagram": "## Activity Diagram\n```\n@startuml\n" +
		"' Default Activity Diagram\n" +
		"start\n:Process Request;\nstop\n@enduml\n```\n",
}

// DiagramStage generates UML diagrams in PlantUML notation from the
// interview transcript.
type DiagramStage struct {
	llm      *agent.Handle
	writer   *artifact.Writer
	prompts  *prompts.Catalog
	recorder Recorder
	logger   *logx.Logger
}

// NewDiagramStage creates the diagram generation stage.
func NewDiagramStage(llm *agent.Handle, writer *artifact.Writer, promptCatalog *prompts.Catalog, recorder Recorder) *DiagramStage {
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	return &DiagramStage{
		llm:      llm,
		writer:   writer,
		prompts:  promptCatalog,
		recorder: recorder,
		logger:   logx.NewLogger("stage"),
	}
}

// Step implements Stage.
func (s *DiagramStage) Step() string { return proto.StepDiagram }

// Generate implements Stage.
func (s *DiagramStage) Generate(ctx context.Context, in Input) Result {
	start := time.Now()
	ref, err := s.generate(ctx, in)
	result := Result{Step: s.Step(), Duration: time.Since(start)}
	if err != nil {
		s.logger.Warn("diagram stage failed for session %s: %v", in.SessionID, err)
		result.Err = err
	} else {
		result.Artifact = &ref
	}
	s.recorder.ObserveStage(in.SessionID, s.Step(), err == nil, result.Duration)
	return result
}

func (s *DiagramStage) generate(ctx context.Context, in Input) (artifact.Ref, error) {
	if len(in.Transcript) == 0 {
		return artifact.Ref{}, fmt.Errorf("empty transcript")
	}

	userPrompt, err := prompts.Render(s.prompts.Diagram.User, map[string]any{
		"Transcript": in.Transcript.Render(),
	})
	if err != nil {
		return artifact.Ref{}, fmt.Errorf("render diagram prompt: %w", err)
	}

	req := agent.NewCompletionRequest([]agent.CompletionMessage{
		agent.NewSystemMessage(s.prompts.Diagram.System),
		agent.NewUserMessage(userPrompt),
	})
	req.SessionID = in.SessionID
	resp, err := s.llm.Complete(ctx, req)
	if err != nil {
		return artifact.Ref{}, fmt.Errorf("diagram generation: %w", err)
	}

	content, err := validateDiagrams(resp.Content)
	if err != nil {
		return artifact.Ref{}, err
	}

	ref, err := s.writer.Write(in.Group, artifact.KindDiagram, in.ChatTitle, content)
	if err != nil {
		return artifact.Ref{}, fmt.Errorf("persist diagrams: %w", err)
	}
	return ref, nil
}

// validateDiagrams checks the structural contract of generated diagrams:
// non-empty content with balanced PlantUML markers. Missing diagram
// sections are filled with fallback templates.
func validateDiagrams(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("generated diagram content is empty")
	}
	if !strings.Contains(content, "@startuml") || !strings.Contains(content, "@enduml") {
		return "", fmt.Errorf("generated diagrams missing required PlantUML markers")
	}
	if strings.Count(content, "@startuml") != strings.Count(content, "@enduml") {
		return "", fmt.Errorf("generated diagrams have unbalanced PlantUML markers")
	}

	for _, section := range requiredDiagramSections {
		if !strings.Contains(content, section) {
			content += "\n\n" + fallbackDiagramTemplates[section]
		}
	}
	return content, nil
}
