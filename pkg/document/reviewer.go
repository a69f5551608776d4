package document

import (
	"context"
	"fmt"
	"strings"

	"specsmith/pkg/agent"
	"specsmith/pkg/artifact"
	"specsmith/pkg/logx"
	"specsmith/pkg/prompts"
)

// ReviewResult is the outcome of a review pass. Ref always points at an
// existing file: the improved document when review succeeded, the original
// otherwise.
type ReviewResult struct {
	Ref      artifact.Ref
	Improved bool
	Reason   string // why the original was kept, when Improved is false
}

// Reviewer runs an improvement pass over an assembled document. Review is
// strictly best-effort: any failure keeps the pre-review artifact.
type Reviewer struct {
	llm     *agent.Handle
	writer  *artifact.Writer
	prompts *prompts.Catalog
	logger  *logx.Logger
}

// NewReviewer creates a document reviewer.
func NewReviewer(llm *agent.Handle, writer *artifact.Writer, promptCatalog *prompts.Catalog) *Reviewer {
	return &Reviewer{
		llm:     llm,
		writer:  writer,
		prompts: promptCatalog,
		logger:  logx.NewLogger("document"),
	}
}

// Review attempts to improve the document at ref.
func (r *Reviewer) Review(ctx context.Context, sessionID, group, chatTitle string, ref artifact.Ref) ReviewResult {
	original, err := artifact.Read(ref)
	if err != nil {
		r.logger.Warn("review skipped, cannot read document: %v", err)
		return ReviewResult{Ref: ref, Reason: fmt.Sprintf("document unreadable: %v", err)}
	}

	userPrompt, err := prompts.Render(r.prompts.Review.User, map[string]any{
		"Document": original,
	})
	if err != nil {
		r.logger.Warn("review skipped, prompt render failed: %v", err)
		return ReviewResult{Ref: ref, Reason: "review prompt could not be rendered"}
	}

	req := agent.NewCompletionRequest([]agent.CompletionMessage{
		agent.NewSystemMessage(r.prompts.Review.System),
		agent.NewUserMessage(userPrompt),
	})
	req.SessionID = sessionID
	resp, err := r.llm.Complete(ctx, req)
	if err != nil {
		r.logger.Warn("review generation failed, keeping original: %v", err)
		return ReviewResult{Ref: ref, Reason: fmt.Sprintf("review generation failed: %v", err)}
	}

	improved := strings.TrimSpace(resp.Content)
	if improved == "" || improved == strings.TrimSpace(original) {
		return ReviewResult{Ref: ref, Reason: "review produced no improvement"}
	}

	improvedRef, err := r.writer.Write(group, artifact.KindDocumentation, chatTitle+"-reviewed", improved)
	if err != nil {
		r.logger.Warn("could not persist reviewed document, keeping original: %v", err)
		return ReviewResult{Ref: ref, Reason: fmt.Sprintf("persist failed: %v", err)}
	}
	return ReviewResult{Ref: improvedRef, Improved: true}
}
