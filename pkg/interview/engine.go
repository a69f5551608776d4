package interview

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"specsmith/pkg/agent"
	"specsmith/pkg/logx"
	"specsmith/pkg/proto"
	"specsmith/pkg/prompts"
	"specsmith/pkg/session"
	"specsmith/pkg/utils"
)

// DefaultAgentName is the persona the interviewer introduces itself with.
const DefaultAgentName = "Alex"

// historyWindow bounds how many prior messages accompany a free-form turn.
const historyWindow = 6

// historyTokenBudget bounds the total token count of the history sent with
// a free-form turn. Oversized messages are truncated, oldest first.
const historyTokenBudget = 3000

const completionReply = `Thank you for completing this comprehensive interview!

I've gathered all the information needed to proceed with the next steps:

1. **Modeling Phase**: the conversation will be analyzed to generate UML diagrams visualizing the system architecture.

2. **Requirements Phase**: functional and non-functional requirements will be extracted and categorized.

3. **Documentation Phase**: a Software Requirements Specification document will be assembled from the interview, reviewed, and improved where necessary. The requirements and the diagrams will be included in the document.

**Please wait while the documentation workflow processes this information. This may take a few moments...**`

const apologyReply = `I'm sorry, I wasn't able to process that answer just now. ` +
	`Please try again, or say "next" to move on to the next question.`

// Engine is the interview dialog engine. It mutates session state one turn
// at a time and persists after every turn.
type Engine struct {
	catalog   *Catalog
	sessions  *session.Manager
	llm       *agent.Handle
	prompts   *prompts.Catalog
	tokens    *utils.TokenCounter
	agentName string
	logger    *logx.Logger
	// now is swappable for deterministic greeting tests.
	now func() time.Time
}

// NewEngine creates the dialog engine.
func NewEngine(catalog *Catalog, sessions *session.Manager, llm *agent.Handle, promptCatalog *prompts.Catalog) *Engine {
	counter, err := utils.NewTokenCounter(llm.Model())
	if err != nil {
		// Counting falls back to character estimation inside the counter.
		counter = &utils.TokenCounter{}
	}
	return &Engine{
		catalog:   catalog,
		sessions:  sessions,
		llm:       llm,
		prompts:   promptCatalog,
		tokens:    counter,
		agentName: DefaultAgentName,
		logger:    logx.NewLogger("interview"),
		now:       time.Now,
	}
}

// isNavigation reports whether text is a recognized navigation token.
func isNavigation(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "next", "continue", "proceed":
		return true
	default:
		return false
	}
}

// Handle processes one inbound user message and returns the reply. State
// is persisted before returning, including on degraded turns.
func (e *Engine) Handle(ctx context.Context, sessionID, username, text string) (string, error) {
	state := e.sessions.Load(ctx, sessionID, username)
	state.AppendMessage(proto.NewUserMessage(text))

	var reply string
	switch {
	case state.Transcript.AssistantTurns() == 0:
		reply = e.introduce(state)
	case state.IsComplete:
		reply = completionReply
	case isNavigation(text):
		reply = e.advance(state)
	default:
		reply = e.freeForm(ctx, state, text)
	}

	state.AppendMessage(proto.NewAssistantMessage(reply))
	if err := e.sessions.Save(ctx, state); err != nil {
		return "", err
	}
	return reply, nil
}

// IsComplete reports whether the session's interview has finished.
func (e *Engine) IsComplete(ctx context.Context, sessionID string) bool {
	return e.sessions.Load(ctx, sessionID, "").IsComplete
}

// Progress returns the session's progress percentage.
func (e *Engine) Progress(ctx context.Context, sessionID string) float64 {
	return e.sessions.Load(ctx, sessionID, "").ProgressPercent
}

// introduce produces the first-turn greeting and first question. The
// inbound text is ignored: the first turn always introduces.
func (e *Engine) introduce(state *session.State) string {
	firstQuestion, err := e.catalog.Question(state.Cursor)
	if err != nil {
		e.logger.Error("invalid cursor on first turn for session %s: %v", state.SessionID, err)
		state.Cursor = session.NewCursor()
		firstQuestion, _ = e.catalog.Question(state.Cursor)
	}

	greeting := greetingForHour(e.now().UTC().Hour())
	namePart := ","
	if name := capitalize(state.Username); name != "" {
		namePart = fmt.Sprintf(" %s,", name)
	}

	state.Cursor.IsFirstMessage = false

	return fmt.Sprintf(`%s%s my name is %s. I am a senior business analyst specializing in stakeholder interviews and requirements gathering. I'll be conducting a structured interview to help understand your project needs and requirements thoroughly. We'll go through several sections covering different aspects of your project.

### Let's begin with our first question!

**%s**`, greeting, namePart, e.agentName, firstQuestion)
}

// advance handles a navigation token: move to the next question, the next
// section, or completion, and recompute progress.
func (e *Engine) advance(state *session.State) string {
	cur := state.Cursor

	questionCount, err := e.catalog.QuestionCount(cur.SectionIndex)
	if err != nil {
		e.logger.Error("invalid cursor for session %s: %v", state.SessionID, err)
		return apologyReply
	}

	// Progress counts the question just passed, computed before advancing.
	progress := float64(e.catalog.PassedQuestions(cur)) / float64(e.catalog.TotalQuestions()) * 100
	if progress > state.ProgressPercent {
		state.ProgressPercent = progress
	}

	var reply string
	switch {
	case cur.QuestionIndex < questionCount-1:
		state.Cursor.QuestionIndex++
		question, qErr := e.catalog.Question(state.Cursor)
		if qErr != nil {
			e.logger.Error("cursor advance failed for session %s: %v", state.SessionID, qErr)
			return apologyReply
		}
		reply = fmt.Sprintf("\n\n**%s**", question)
	case cur.SectionIndex < e.catalog.SectionCount():
		state.Cursor.SectionIndex++
		state.Cursor.QuestionIndex = 0
		sectionName, _ := e.catalog.SectionName(state.Cursor.SectionIndex)
		question, qErr := e.catalog.Question(state.Cursor)
		if qErr != nil {
			e.logger.Error("section advance failed for session %s: %v", state.SessionID, qErr)
			return apologyReply
		}
		reply = fmt.Sprintf("\n\n### Moving on to section: %s\n\n**%s**", sectionName, question)
	default:
		state.IsComplete = true
		state.ProgressPercent = 100
		reply = completionReply
	}

	e.logger.Debug("Session %s advanced to section %d question %d (%.0f%%)",
		state.SessionID, state.Cursor.SectionIndex, state.Cursor.QuestionIndex, state.ProgressPercent)
	return reply
}

// freeForm delegates a non-navigation answer to the text-generation
// service. Failures leave the cursor and progress untouched.
func (e *Engine) freeForm(ctx context.Context, state *session.State, text string) string {
	sectionName, err := e.catalog.SectionName(state.Cursor.SectionIndex)
	if err != nil {
		e.logger.Error("invalid cursor for session %s: %v", state.SessionID, err)
		return apologyReply
	}
	question, err := e.catalog.Question(state.Cursor)
	if err != nil {
		e.logger.Error("invalid cursor for session %s: %v", state.SessionID, err)
		return apologyReply
	}

	system, err := prompts.Render(e.prompts.Interview.System, map[string]any{
		"AgentName":       e.agentName,
		"SectionName":     sectionName,
		"Progress":        int(state.ProgressPercent),
		"CurrentQuestion": question,
	})
	if err != nil {
		e.logger.Error("prompt render failed for session %s: %v", state.SessionID, err)
		return apologyReply
	}

	messages := []agent.CompletionMessage{agent.NewSystemMessage(system)}
	messages = append(messages, e.history(state)...)
	messages = append(messages, agent.NewUserMessage(text))

	req := agent.NewCompletionRequest(messages)
	req.SessionID = state.SessionID
	resp, err := e.llm.Complete(ctx, req)
	if err != nil {
		e.logger.Warn("generation failed for session %s, cursor unchanged: %v", state.SessionID, err)
		return apologyReply
	}
	return resp.Content
}

// history converts the tail of the transcript (excluding the just-appended
// user message) into completion messages within the token budget.
func (e *Engine) history(state *session.State) []agent.CompletionMessage {
	transcript := state.Transcript
	if len(transcript) == 0 {
		return nil
	}
	// Drop the current user message, then take the last historyWindow.
	prior := transcript[:len(transcript)-1]
	if len(prior) > historyWindow {
		prior = prior[len(prior)-historyWindow:]
	}

	var out []agent.CompletionMessage
	budget := historyTokenBudget
	for i := range prior {
		msg := &prior[i]
		content := msg.Content
		if cost := e.tokens.CountTokens(content); cost > budget {
			content = e.tokens.TruncateToTokenLimit(content, budget)
		}
		budget -= e.tokens.CountTokens(content)
		switch msg.Role {
		case proto.RoleUser:
			out = append(out, agent.NewUserMessage(content))
		case proto.RoleAssistant:
			out = append(out, agent.NewAssistantMessage(content))
		}
		if budget <= 0 {
			break
		}
	}
	return out
}

func greetingForHour(hour int) string {
	switch {
	case hour < 12:
		return "Good morning"
	case hour < 17:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
