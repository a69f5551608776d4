package interview

import (
	"context"
	"fmt"
	"strings"
	"time"

	"specsmith/pkg/artifact"
	"specsmith/pkg/proto"
	"specsmith/pkg/session"
)

// TranscriptWriter renders a finished interview to markdown and persists it
// as the interview artifact later stages consume.
type TranscriptWriter struct {
	writer *artifact.Writer
}

// NewTranscriptWriter creates a transcript writer over the artifact tree.
func NewTranscriptWriter(writer *artifact.Writer) *TranscriptWriter {
	return &TranscriptWriter{writer: writer}
}

// Write renders the session transcript and writes it under the group's
// interviews directory, returning the exact artifact handle.
func (w *TranscriptWriter) Write(_ context.Context, state *session.State, group, chatTitle string) (artifact.Ref, error) {
	if len(state.Transcript) == 0 {
		return artifact.Ref{}, fmt.Errorf("session %s has no transcript to save", state.SessionID)
	}

	content := renderTranscript(state, group, chatTitle)
	ref, err := w.writer.Write(group, artifact.KindInterview, chatTitle, content)
	if err != nil {
		return artifact.Ref{}, fmt.Errorf("save interview transcript: %w", err)
	}
	return ref, nil
}

func renderTranscript(state *session.State, group, chatTitle string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Chat Session: %s\n\n", chatTitle)
	fmt.Fprintf(&b, "- **User**: %s\n", state.Username)
	fmt.Fprintf(&b, "- **Group**: %s\n", group)
	fmt.Fprintf(&b, "- **Progress**: %.1f%%\n", state.ProgressPercent)
	fmt.Fprintf(&b, "- **Saved**: %s\n\n", time.Now().UTC().Format(time.RFC3339))
	b.WriteString("## Messages\n\n")

	for i := range state.Transcript {
		msg := &state.Transcript[i]
		sender := "User"
		if msg.Role == proto.RoleAssistant {
			sender = "Assistant"
		}
		fmt.Fprintf(&b, "### %s (%s)\n\n", sender, msg.Timestamp.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "%s\n\n---\n\n", msg.Content)
	}
	return b.String()
}
