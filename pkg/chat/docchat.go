package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"specsmith/pkg/agent"
	"specsmith/pkg/artifact"
	"specsmith/pkg/interview"
	"specsmith/pkg/kvstore"
	"specsmith/pkg/logx"
	"specsmith/pkg/prompts"
	"specsmith/pkg/proto"
)

// proposalRegex extracts the structured change proposal from a reply.
var proposalRegex = regexp.MustCompile(`(?s)\s*\[PROPOSED_CHANGE\]<json>(.*?)</json>\[/PROPOSED_CHANGE\]\s*`)

// docChatHistoryWindow bounds how many prior messages accompany each turn.
const docChatHistoryWindow = 10

// ModificationSuggestion is a structured edit proposed during document chat.
// It is advisory: nothing applies it to the artifact automatically.
type ModificationSuggestion struct {
	Section   string `json:"section"`
	Original  string `json:"original,omitempty"`
	Proposed  string `json:"proposed"`
	Rationale string `json:"rationale,omitempty"`
}

// DocChatReply is one turn's outcome: the conversational response with any
// proposal blocks stripped, plus the suggestions parsed out of them.
type DocChatReply struct {
	Response    string
	Suggestions []ModificationSuggestion
}

// DocumentChat discusses a generated document with the user. Each session
// keeps its own chat history, independent of the interview transcript.
type DocumentChat struct {
	llm       *agent.Handle
	store     kvstore.Store
	prompts   *prompts.Catalog
	agentName string
	ttl       time.Duration
	logger    *logx.Logger
}

// NewDocumentChat creates a document chat over the given store and LLM.
func NewDocumentChat(llm *agent.Handle, store kvstore.Store, promptCatalog *prompts.Catalog, ttl time.Duration) *DocumentChat {
	return &DocumentChat{
		llm:       llm,
		store:     store,
		prompts:   promptCatalog,
		agentName: interview.DefaultAgentName,
		ttl:       ttl,
		logger:    logx.NewLogger("docchat"),
	}
}

func docChatKey(sessionID string) string {
	return kvstore.Key(kvstore.NamespaceDocument, sessionID)
}

// Discuss processes one document chat turn. The document travels as an
// exact artifact reference; a missing file is an error, never a search.
func (d *DocumentChat) Discuss(ctx context.Context, sessionID string, doc artifact.Ref, text string) (DocChatReply, error) {
	content, err := artifact.Read(doc)
	if err != nil {
		return DocChatReply{}, fmt.Errorf("document not available: %w", err)
	}

	system, err := prompts.Render(d.prompts.DocumentChat.System, map[string]any{
		"AgentName": d.agentName,
		"Document":  content,
	})
	if err != nil {
		return DocChatReply{}, fmt.Errorf("render document chat prompt: %w", err)
	}

	history := d.loadHistory(ctx, sessionID)
	messages := []agent.CompletionMessage{agent.NewSystemMessage(system)}
	for _, msg := range history {
		switch msg.Role {
		case proto.RoleUser:
			messages = append(messages, agent.NewUserMessage(msg.Content))
		case proto.RoleAssistant:
			messages = append(messages, agent.NewAssistantMessage(msg.Content))
		}
	}
	messages = append(messages, agent.NewUserMessage(text))

	req := agent.NewCompletionRequest(messages)
	req.SessionID = sessionID
	resp, err := d.llm.Complete(ctx, req)
	if err != nil {
		// History stays untouched so the user can simply retry.
		return DocChatReply{}, fmt.Errorf("document chat generation failed: %w", err)
	}

	reply := parseProposals(resp.Content)
	d.logger.Debug("Session %s document chat turn: %d suggestion(s)", sessionID, len(reply.Suggestions))

	history = append(history, proto.NewUserMessage(text), proto.NewAssistantMessage(reply.Response))
	if len(history) > docChatHistoryWindow {
		history = history[len(history)-docChatHistoryWindow:]
	}
	d.saveHistory(ctx, sessionID, history)
	return reply, nil
}

// History returns the stored document chat history for a session.
func (d *DocumentChat) History(ctx context.Context, sessionID string) []proto.Message {
	return d.loadHistory(ctx, sessionID)
}

func (d *DocumentChat) loadHistory(ctx context.Context, sessionID string) []proto.Message {
	data, err := d.store.Get(ctx, docChatKey(sessionID))
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			d.logger.Warn("document chat history load failed for session %s: %v", sessionID, err)
		}
		return nil
	}
	var history []proto.Message
	if err := json.Unmarshal(data, &history); err != nil {
		d.logger.Warn("corrupt document chat history for session %s, starting fresh: %v", sessionID, err)
		return nil
	}
	return history
}

func (d *DocumentChat) saveHistory(ctx context.Context, sessionID string, history []proto.Message) {
	data, err := json.Marshal(history)
	if err != nil {
		d.logger.Warn("could not marshal document chat history for session %s: %v", sessionID, err)
		return
	}
	if err := d.store.Set(ctx, docChatKey(sessionID), data, d.ttl); err != nil {
		d.logger.Warn("could not persist document chat history for session %s: %v", sessionID, err)
	}
}

// parseProposals splits a raw reply into the display text and the
// suggestions carried in proposal blocks. A malformed block is dropped but
// still stripped from the display text.
func parseProposals(raw string) DocChatReply {
	matches := proposalRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return DocChatReply{Response: raw}
	}

	display := strings.TrimSpace(proposalRegex.ReplaceAllString(raw, "\n"))
	var suggestions []ModificationSuggestion
	for _, m := range matches {
		for _, s := range decodeSuggestions(m[1]) {
			if strings.TrimSpace(s.Section) == "" || strings.TrimSpace(s.Proposed) == "" {
				continue
			}
			suggestions = append(suggestions, s)
		}
	}
	return DocChatReply{Response: display, Suggestions: suggestions}
}

// decodeSuggestions accepts both a single JSON object and a JSON array.
func decodeSuggestions(jsonText string) []ModificationSuggestion {
	jsonText = strings.TrimSpace(jsonText)
	var one ModificationSuggestion
	if err := json.Unmarshal([]byte(jsonText), &one); err == nil {
		return []ModificationSuggestion{one}
	}
	var many []ModificationSuggestion
	if err := json.Unmarshal([]byte(jsonText), &many); err == nil {
		return many
	}
	return nil
}
