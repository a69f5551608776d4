package document

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specsmith/pkg/agent"
	"specsmith/pkg/artifact"
	"specsmith/pkg/prompts"
)

func loadPrompts(t *testing.T) *prompts.Catalog {
	t.Helper()
	c, err := prompts.Load()
	require.NoError(t, err)
	return c
}

func writeInterview(t *testing.T, w *artifact.Writer) artifact.Ref {
	t.Helper()
	ref, err := w.Write("default", artifact.KindInterview, "Shop System", "# Chat Session: Shop System\n\nUser: we need a shop.")
	require.NoError(t, err)
	return ref
}

func sectionResponses() []string {
	out := make([]string, 0, len(prompts.SectionOrder))
	for _, s := range prompts.SectionOrder {
		out = append(out, "## "+s.Title+"\n\nGenerated content for "+s.Title+".")
	}
	return out
}

func TestAssembleProducesDocumentWithDiagrams(t *testing.T) {
	root := t.TempDir()
	w := artifact.NewWriter(root)
	interviewRef := writeInterview(t, w)
	diagramRef, err := w.Write("default", artifact.KindDiagram, "Shop System", "## Class Diagram\n@startuml\nclass Shop\n@enduml")
	require.NoError(t, err)

	mock := agent.NewMockLLMClientWithContent(sectionResponses()...)
	a := NewAssembler(agent.NewHandle(mock, "m"), w, loadPrompts(t))

	result, err := a.Assemble(context.Background(), "s1", "default", "Shop System", interviewRef, &diagramRef)
	require.NoError(t, err)
	assert.True(t, result.Ref.Exists())
	assert.Equal(t, len(prompts.SectionOrder), mock.CallCount(), "one generation call per section")
	for _, call := range mock.Calls() {
		assert.Equal(t, "s1", call.SessionID, "generation calls carry the session")
	}

	content, err := artifact.Read(result.Ref)
	require.NoError(t, err)
	for _, s := range prompts.SectionOrder {
		assert.Contains(t, content, "## "+s.Title)
	}
	assert.Contains(t, content, "@startuml")
	assert.NotContains(t, content, diagramsOmittedMarker)
}

func TestAssembleDegradesWithoutDiagrams(t *testing.T) {
	w := artifact.NewWriter(t.TempDir())
	interviewRef := writeInterview(t, w)

	mock := agent.NewMockLLMClientWithContent(sectionResponses()...)
	a := NewAssembler(agent.NewHandle(mock, "m"), w, loadPrompts(t))

	result, err := a.Assemble(context.Background(), "s1", "default", "Shop System", interviewRef, nil)
	require.NoError(t, err)

	content, err := artifact.Read(result.Ref)
	require.NoError(t, err)
	assert.Contains(t, content, diagramsOmittedMarker)
	assert.Contains(t, result.Message, "omitted")
}

func TestAssembleFailsOnMissingInterview(t *testing.T) {
	w := artifact.NewWriter(t.TempDir())
	missing := artifact.Ref{
		Kind: artifact.KindInterview,
		Path: filepath.Join(t.TempDir(), "gone.md"),
	}

	a := NewAssembler(agent.NewHandle(agent.NewMockLLMClientWithContent("x"), "m"), w, loadPrompts(t))
	_, err := a.Assemble(context.Background(), "s1", "default", "Shop System", missing, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interview artifact not found")
}

func TestAssembleDegradesFailedSections(t *testing.T) {
	w := artifact.NewWriter(t.TempDir())
	interviewRef := writeInterview(t, w)

	mock := agent.NewMockLLMClient(nil, []error{agent.NewError(agent.ErrorTypeTransient, "down")})
	a := NewAssembler(agent.NewHandle(mock, "m"), w, loadPrompts(t))

	result, err := a.Assemble(context.Background(), "s1", "default", "Shop System", interviewRef, nil)
	require.NoError(t, err, "section failures must not abort assembly")

	content, err := artifact.Read(result.Ref)
	require.NoError(t, err)
	assert.Contains(t, content, "[Error: failed to generate content for this section]")
	for _, s := range prompts.SectionOrder {
		assert.Contains(t, content, "## "+s.Title, "failed sections still get their headers")
	}
}

func TestReviewProducesImprovedDocument(t *testing.T) {
	w := artifact.NewWriter(t.TempDir())
	docRef, err := w.Write("default", artifact.KindDocumentation, "Shop System", "original document")
	require.NoError(t, err)

	mock := agent.NewMockLLMClientWithContent("improved document")
	r := NewReviewer(agent.NewHandle(mock, "m"), w, loadPrompts(t))

	result := r.Review(context.Background(), "s1", "default", "Shop System", docRef)
	assert.True(t, result.Improved)
	assert.True(t, result.Ref.Exists())
	assert.NotEqual(t, docRef.Path, result.Ref.Path)

	content, err := artifact.Read(result.Ref)
	require.NoError(t, err)
	assert.Equal(t, "improved document", content)
}

func TestReviewFailureKeepsOriginal(t *testing.T) {
	w := artifact.NewWriter(t.TempDir())
	docRef, err := w.Write("default", artifact.KindDocumentation, "Shop System", "original document")
	require.NoError(t, err)

	mock := agent.NewMockLLMClient(nil, []error{agent.NewError(agent.ErrorTypeTransient, "down")})
	r := NewReviewer(agent.NewHandle(mock, "m"), w, loadPrompts(t))

	result := r.Review(context.Background(), "s1", "default", "Shop System", docRef)
	assert.False(t, result.Improved)
	assert.Equal(t, docRef.Path, result.Ref.Path)
	assert.True(t, result.Ref.Exists())
	assert.NotEmpty(t, result.Reason)
}

func TestReviewNoChangeKeepsOriginal(t *testing.T) {
	w := artifact.NewWriter(t.TempDir())
	docRef, err := w.Write("default", artifact.KindDocumentation, "Shop System", "same content")
	require.NoError(t, err)

	mock := agent.NewMockLLMClientWithContent("same content")
	r := NewReviewer(agent.NewHandle(mock, "m"), w, loadPrompts(t))

	result := r.Review(context.Background(), "s1", "default", "Shop System", docRef)
	assert.False(t, result.Improved)
	assert.Equal(t, docRef.Path, result.Ref.Path)
	assert.True(t, strings.Contains(result.Reason, "no improvement"))
}
