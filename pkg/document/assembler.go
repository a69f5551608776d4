// Package document assembles the final Software Requirements Specification
// from the interview artifact and optional diagram artifact, then runs a
// non-fatal review pass over it.
package document

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"specsmith/pkg/agent"
	"specsmith/pkg/artifact"
	"specsmith/pkg/logx"
	"specsmith/pkg/prompts"
)

// diagramsOmittedMarker is embedded in the document when no diagram
// artifact is available.
const diagramsOmittedMarker = "_UML diagrams are not included in this document: diagram generation did not produce a usable artifact._"

const documentVersion = "1.1"

var docTemplate = template.Must(template.New("srs").Parse(`# Software Requirements Specification: {{.Title}}

- **Version**: {{.Version}}
- **Date**: {{.Date}}
- **Description**: {{.Description}}

{{range .Sections}}{{.}}

{{end}}## Appendix: UML Diagrams

{{.DiagramContent}}
`))

// AssembleResult reports where the final document lives and a summary the
// caller can surface to the user.
type AssembleResult struct {
	Ref     artifact.Ref
	Message string
}

// Assembler generates the document sections and renders the final file.
type Assembler struct {
	llm     *agent.Handle
	writer  *artifact.Writer
	prompts *prompts.Catalog
	logger  *logx.Logger
}

// NewAssembler creates a document assembler.
func NewAssembler(llm *agent.Handle, writer *artifact.Writer, promptCatalog *prompts.Catalog) *Assembler {
	return &Assembler{
		llm:     llm,
		writer:  writer,
		prompts: promptCatalog,
		logger:  logx.NewLogger("document"),
	}
}

// Assemble builds the final document. The interview artifact is a hard
// precondition; a missing or unreadable diagram artifact degrades to a
// document without diagrams.
func (a *Assembler) Assemble(ctx context.Context, sessionID, group, chatTitle string, interviewRef artifact.Ref, diagramRef *artifact.Ref) (AssembleResult, error) {
	if !interviewRef.Exists() {
		return AssembleResult{}, fmt.Errorf("interview artifact not found: %s", interviewRef.Path)
	}
	interviewContent, err := artifact.Read(interviewRef)
	if err != nil {
		return AssembleResult{}, fmt.Errorf("read interview artifact: %w", err)
	}

	sections := make([]string, 0, len(prompts.SectionOrder))
	for _, s := range prompts.SectionOrder {
		sections = append(sections, a.generateSection(ctx, sessionID, s.Title, s.Key, interviewContent))
	}

	diagramContent := diagramsOmittedMarker
	if diagramRef != nil && diagramRef.Exists() {
		if content, readErr := artifact.Read(*diagramRef); readErr == nil {
			diagramContent = content
		} else {
			a.logger.Warn("diagram artifact unreadable, omitting: %v", readErr)
		}
	}

	var b strings.Builder
	renderErr := docTemplate.Execute(&b, map[string]any{
		"Title":          chatTitle,
		"Version":        documentVersion,
		"Date":           time.Now().UTC().Format("2006-01-02"),
		"Description":    fmt.Sprintf("Software Requirements Specification for project '%s'", chatTitle),
		"Sections":       sections,
		"DiagramContent": diagramContent,
	})
	if renderErr != nil {
		return AssembleResult{}, fmt.Errorf("render document template: %w", renderErr)
	}

	ref, err := a.writer.Write(group, artifact.KindDocumentation, chatTitle, b.String())
	if err != nil {
		return AssembleResult{}, fmt.Errorf("persist document: %w", err)
	}

	message := "Requirements document generated from the interview and saved."
	if diagramContent == diagramsOmittedMarker {
		message += " Diagrams were not available and are omitted."
	}
	return AssembleResult{Ref: ref, Message: message}, nil
}

// generateSection produces one document section. A failed generation is
// degraded to an in-document error note rather than failing assembly.
func (a *Assembler) generateSection(ctx context.Context, sessionID, title, key, interviewContent string) string {
	pair := a.prompts.DocumentSections[key]

	req := agent.NewCompletionRequest([]agent.CompletionMessage{
		agent.NewSystemMessage(pair.System),
		agent.NewUserMessage(fmt.Sprintf("Interview transcript:\n\n%s", interviewContent)),
	})
	req.SessionID = sessionID
	resp, err := a.llm.Complete(ctx, req)
	if err != nil {
		a.logger.Warn("section %q generation failed: %v", title, err)
		return fmt.Sprintf("## %s\n\n[Error: failed to generate content for this section]\n", title)
	}

	content := strings.TrimSpace(resp.Content)
	header := fmt.Sprintf("## %s", title)
	if !strings.HasPrefix(content, header) {
		content = header + "\n\n" + content
	}
	return content
}
