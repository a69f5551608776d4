// Package interview drives the structured stakeholder interview: a fixed
// question catalog, a cursor over it, navigation commands, and free-form
// answers delegated to the text-generation service.
package interview

import (
	"fmt"

	"specsmith/pkg/prompts"
	"specsmith/pkg/session"
)

// Catalog is the fixed set of interview sections and questions. Sections
// are indexed from 1 to match the cursor convention.
type Catalog struct {
	sections []prompts.QuestionSection
	total    int
}

// NewCatalog wraps loaded question sections.
func NewCatalog(sections []prompts.QuestionSection) (*Catalog, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("catalog must have at least one section")
	}
	total := 0
	for _, s := range sections {
		if len(s.Questions) == 0 {
			return nil, fmt.Errorf("section %q has no questions", s.Name)
		}
		total += len(s.Questions)
	}
	return &Catalog{sections: sections, total: total}, nil
}

// SectionCount returns the number of sections.
func (c *Catalog) SectionCount() int { return len(c.sections) }

// TotalQuestions returns the number of questions across all sections.
func (c *Catalog) TotalQuestions() int { return c.total }

// SectionName returns the name of the 1-based section index.
func (c *Catalog) SectionName(section int) (string, error) {
	if section < 1 || section > len(c.sections) {
		return "", fmt.Errorf("section index %d out of range [1,%d]", section, len(c.sections))
	}
	return c.sections[section-1].Name, nil
}

// QuestionCount returns the number of questions in a 1-based section.
func (c *Catalog) QuestionCount(section int) (int, error) {
	if section < 1 || section > len(c.sections) {
		return 0, fmt.Errorf("section index %d out of range [1,%d]", section, len(c.sections))
	}
	return len(c.sections[section-1].Questions), nil
}

// Question returns the question at a cursor position.
func (c *Catalog) Question(cur session.Cursor) (string, error) {
	if cur.SectionIndex < 1 || cur.SectionIndex > len(c.sections) {
		return "", fmt.Errorf("cursor section %d out of range [1,%d]", cur.SectionIndex, len(c.sections))
	}
	qs := c.sections[cur.SectionIndex-1].Questions
	if cur.QuestionIndex < 0 || cur.QuestionIndex >= len(qs) {
		return "", fmt.Errorf("cursor question %d out of range [0,%d)", cur.QuestionIndex, len(qs))
	}
	return qs[cur.QuestionIndex], nil
}

// PassedQuestions counts the questions fully passed at a cursor position,
// counting the current question as passed. Used for progress on "next".
func (c *Catalog) PassedQuestions(cur session.Cursor) int {
	passed := 0
	for i := 1; i < cur.SectionIndex && i <= len(c.sections); i++ {
		passed += len(c.sections[i-1].Questions)
	}
	return passed + cur.QuestionIndex + 1
}
