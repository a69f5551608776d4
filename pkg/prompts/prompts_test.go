package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedCatalog(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, c.Interview.System)
	assert.NotEmpty(t, c.Diagram.System)
	assert.NotEmpty(t, c.Requirements.System)
	assert.NotEmpty(t, c.DocumentChat.System)
	assert.NotEmpty(t, c.Review.System)
	assert.Len(t, c.DocumentSections, len(SectionOrder))
	for _, s := range SectionOrder {
		assert.NotEmpty(t, c.DocumentSections[s.Key].System, s.Key)
	}
}

func TestRender(t *testing.T) {
	out, err := Render("Question: {{.CurrentQuestion}} ({{.Progress}}%)", map[string]any{
		"CurrentQuestion": "What is the goal?",
		"Progress":        50,
	})
	require.NoError(t, err)
	assert.Equal(t, "Question: What is the goal? (50%)", out)
}

func TestRenderRejectsBadTemplate(t *testing.T) {
	_, err := Render("{{.Unclosed", nil)
	assert.Error(t, err)
}

func TestLoadEmbeddedQuestions(t *testing.T) {
	sections, err := LoadQuestions()
	require.NoError(t, err)
	require.NotEmpty(t, sections)
	for _, s := range sections {
		assert.NotEmpty(t, s.Name)
		assert.NotEmpty(t, s.Questions)
	}
}

func TestLoadQuestionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sections:
  - name: Only Section
    questions:
      - "Q1?"
      - "Q2?"
`), 0o644))

	sections, err := LoadQuestionsFile(path)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "Only Section", sections[0].Name)
	assert.Len(t, sections[0].Questions, 2)
}

func TestLoadQuestionsFileRejectsEmptySections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sections:
  - name: Empty
    questions: []
`), 0o644))

	_, err := LoadQuestionsFile(path)
	assert.Error(t, err)
}
