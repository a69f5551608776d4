// Package prompts loads the embedded prompt and question catalogs used by
// the interview engine, the generation stages, and document assembly.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates/prompts.yaml
var promptsYAML []byte

//go:embed templates/questions.yaml
var questionsYAML []byte

// PromptPair is a system prompt plus an optional user template.
type PromptPair struct {
	System string `yaml:"system"`
	User   string `yaml:"user,omitempty"`
}

// Catalog holds all prompt definitions.
type Catalog struct {
	Interview        PromptPair            `yaml:"interview"`
	Diagram          PromptPair            `yaml:"diagram"`
	Requirements     PromptPair            `yaml:"requirements"`
	DocumentSections map[string]PromptPair `yaml:"document_sections"`
	DocumentChat     PromptPair            `yaml:"document_chat"`
	Review           PromptPair            `yaml:"review"`
}

// SectionOrder fixes the order document sections are generated and the
// prompt key each maps to.
var SectionOrder = []struct {
	Title string
	Key   string
}{
	{"Introduction", "introduction"},
	{"Overall Description", "overall_description"},
	{"System Features", "system_features"},
	{"External Interface Requirements", "external_interface_requirements"},
	{"Non-functional Requirements", "non_functional_requirements"},
	{"Other Requirements", "other_requirements"},
}

// Load parses the embedded prompt catalog.
func Load() (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(promptsYAML, &c); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	for _, s := range SectionOrder {
		if _, ok := c.DocumentSections[s.Key]; !ok {
			return nil, fmt.Errorf("prompt catalog missing document section %q", s.Key)
		}
	}
	if c.DocumentChat.System == "" {
		return nil, fmt.Errorf("prompt catalog missing document_chat prompt")
	}
	return &c, nil
}

// Render executes a prompt template string with the given data.
func Render(tmpl string, data any) (string, error) {
	t, err := template.New("prompt").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse prompt template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt template: %w", err)
	}
	return buf.String(), nil
}

// QuestionSection is one named section of interview questions.
type QuestionSection struct {
	Name      string   `yaml:"name"`
	Questions []string `yaml:"questions"`
}

type questionFile struct {
	Sections []QuestionSection `yaml:"sections"`
}

// LoadQuestions parses the embedded question catalog.
func LoadQuestions() ([]QuestionSection, error) {
	return parseQuestions(questionsYAML)
}

// LoadQuestionsFile parses an external question catalog, overriding the
// embedded one.
func LoadQuestionsFile(path string) ([]QuestionSection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question catalog: %w", err)
	}
	return parseQuestions(data)
}

func parseQuestions(data []byte) ([]QuestionSection, error) {
	var f questionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse question catalog: %w", err)
	}
	if len(f.Sections) == 0 {
		return nil, fmt.Errorf("question catalog has no sections")
	}
	for i, s := range f.Sections {
		if s.Name == "" {
			return nil, fmt.Errorf("section %d has no name", i+1)
		}
		if len(s.Questions) == 0 {
			return nil, fmt.Errorf("section %q has no questions", s.Name)
		}
	}
	return f.Sections, nil
}
