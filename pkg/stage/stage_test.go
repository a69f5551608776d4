package stage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specsmith/pkg/agent"
	"specsmith/pkg/artifact"
	"specsmith/pkg/prompts"
	"specsmith/pkg/proto"
)

func testInput() Input {
	return Input{
		SessionID: "s1",
		Group:     "default",
		ChatTitle: "Shop System",
		Transcript: proto.Transcript{
			proto.NewUserMessage("We need a shop system."),
			proto.NewAssistantMessage("What should it sell?"),
			proto.NewUserMessage("Books and music."),
		},
	}
}

func loadPrompts(t *testing.T) *prompts.Catalog {
	t.Helper()
	c, err := prompts.Load()
	require.NoError(t, err)
	return c
}

const completeDiagramOutput = "## Class Diagram\n```\n@startuml\nclass Shop\n@enduml\n```\n" +
	"## Use Case Diagram\n```\n@startuml\nactor Buyer\n@enduml\n```\n" +
	"## Sequence Diagram\n```\n@startuml\nBuyer -> Shop: browse\n@enduml\n```\n" +
	"## Activity Diagram\n```\n@startuml\nstart\nstop\n@enduml\n```\n"

func TestDiagramStageWritesArtifact(t *testing.T) {
	mock := agent.NewMockLLMClientWithContent(completeDiagramOutput)
	s := NewDiagramStage(agent.NewHandle(mock, "m"), artifact.NewWriter(t.TempDir()), loadPrompts(t), nil)

	result := s.Generate(context.Background(), testInput())
	require.False(t, result.Failed(), "unexpected error: %v", result.Err)
	assert.Equal(t, proto.StepDiagram, result.Step)
	require.NotNil(t, result.Artifact)
	assert.True(t, result.Artifact.Exists())

	content, err := artifact.Read(*result.Artifact)
	require.NoError(t, err)
	assert.Contains(t, content, "## Class Diagram")

	// The transcript reached the generation request.
	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[1].Content, "We need a shop system.")
}

func TestDiagramStageFillsMissingSections(t *testing.T) {
	partial := "## Class Diagram\n```\n@startuml\nclass Shop\n@enduml\n```\n"
	mock := agent.NewMockLLMClientWithContent(partial)
	s := NewDiagramStage(agent.NewHandle(mock, "m"), artifact.NewWriter(t.TempDir()), loadPrompts(t), nil)

	result := s.Generate(context.Background(), testInput())
	require.False(t, result.Failed())

	content, err := artifact.Read(*result.Artifact)
	require.NoError(t, err)
	for _, section := range requiredDiagramSections {
		assert.Contains(t, content, "## "+section)
	}
}

func TestDiagramStageRejectsMissingMarkers(t *testing.T) {
	mock := agent.NewMockLLMClientWithContent("## Class Diagram\nno plantuml here")
	s := NewDiagramStage(agent.NewHandle(mock, "m"), artifact.NewWriter(t.TempDir()), loadPrompts(t), nil)

	result := s.Generate(context.Background(), testInput())
	require.True(t, result.Failed())
	assert.Nil(t, result.Artifact)
	assert.Contains(t, result.Err.Error(), "PlantUML markers")
}

func TestDiagramStageRejectsUnbalancedMarkers(t *testing.T) {
	_, err := validateDiagrams("@startuml\n@enduml\n@startuml\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbalanced")
}

func TestDiagramStageConvertsGenerationFailure(t *testing.T) {
	mock := agent.NewMockLLMClient(nil, []error{agent.NewError(agent.ErrorTypeTransient, "downstream broke")})
	s := NewDiagramStage(agent.NewHandle(mock, "m"), artifact.NewWriter(t.TempDir()), loadPrompts(t), nil)

	result := s.Generate(context.Background(), testInput())
	require.True(t, result.Failed())
	assert.Nil(t, result.Artifact)
}

func TestDiagramStageRejectsEmptyTranscript(t *testing.T) {
	s := NewDiagramStage(agent.NewHandle(agent.NewMockLLMClientWithContent("x"), "m"),
		artifact.NewWriter(t.TempDir()), loadPrompts(t), nil)

	in := testInput()
	in.Transcript = nil
	result := s.Generate(context.Background(), in)
	assert.True(t, result.Failed())
}

func TestRequirementsStageWritesArtifact(t *testing.T) {
	output := "## Functional Requirements\n\nFR-1: The system shall sell books.\n\n" +
		"## Non-functional Requirements\n\nNFR-1: Pages load within two seconds.\n"
	mock := agent.NewMockLLMClientWithContent(output)
	s := NewRequirementsStage(agent.NewHandle(mock, "m"), artifact.NewWriter(t.TempDir()), loadPrompts(t), nil)

	result := s.Generate(context.Background(), testInput())
	require.False(t, result.Failed(), "unexpected error: %v", result.Err)
	assert.Equal(t, proto.StepRequirements, result.Step)
	require.NotNil(t, result.Artifact)
	assert.True(t, result.Artifact.Exists())
	assert.True(t, strings.HasSuffix(result.Artifact.Path, ".md"))
}

func TestRequirementsStageFillsMissingSections(t *testing.T) {
	mock := agent.NewMockLLMClientWithContent("## Functional Requirements\n\nFR-1: something\n")
	s := NewRequirementsStage(agent.NewHandle(mock, "m"), artifact.NewWriter(t.TempDir()), loadPrompts(t), nil)

	result := s.Generate(context.Background(), testInput())
	require.False(t, result.Failed())

	content, err := artifact.Read(*result.Artifact)
	require.NoError(t, err)
	assert.Contains(t, content, "## Non-functional Requirements")
}

func TestRequirementsStageConvertsFailure(t *testing.T) {
	mock := agent.NewMockLLMClient(nil, []error{agent.NewError(agent.ErrorTypeRateLimit, "429")})
	s := NewRequirementsStage(agent.NewHandle(mock, "m"), artifact.NewWriter(t.TempDir()), loadPrompts(t), nil)

	result := s.Generate(context.Background(), testInput())
	require.True(t, result.Failed())
	assert.Nil(t, result.Artifact)
}
