// Package chat is the surface exposed to callers: interview turns, progress,
// workflow triggering, session reset, and the post-hoc document chat.
package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"specsmith/pkg/interview"
	"specsmith/pkg/kvstore"
	"specsmith/pkg/logx"
	"specsmith/pkg/session"
	"specsmith/pkg/workflow"
)

// Turn kinds reported to the metrics recorder.
const (
	TurnInterview = "interview"
	TurnRestart   = "restart"
	TurnDocument  = "document_chat"
)

// Recorder receives per-turn observations. Satisfied by
// metrics.PrometheusRecorder.
type Recorder interface {
	ObserveTurn(sessionID, kind string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveTurn(string, string) {}

const restartReplyPrefix = "System reset complete. Starting a new interview.\n\n"

// Service ties the interview engine, the workflow orchestrator, and the
// document chat together behind the operations callers use.
type Service struct {
	engine       *interview.Engine
	orchestrator *workflow.Orchestrator
	sessions     *session.Manager
	store        kvstore.Store
	recorder     Recorder
	logger       *logx.Logger
}

// NewService wires the chat surface. recorder may be nil.
func NewService(
	engine *interview.Engine,
	orchestrator *workflow.Orchestrator,
	sessions *session.Manager,
	store kvstore.Store,
	recorder Recorder,
) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		engine:       engine,
		orchestrator: orchestrator,
		sessions:     sessions,
		store:        store,
		recorder:     recorder,
		logger:       logx.NewLogger("chat"),
	}
}

// NewSessionID mints a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// StartOrContinueInterview processes one interview turn. "restart" resets
// the session and opens a fresh interview in the same reply.
func (s *Service) StartOrContinueInterview(ctx context.Context, sessionID, username, text string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(text), "restart") {
		s.recorder.ObserveTurn(sessionID, TurnRestart)
		return s.restart(ctx, sessionID, username)
	}

	reply, err := s.engine.Handle(ctx, sessionID, username, text)
	if err != nil {
		return "", err
	}
	s.recorder.ObserveTurn(sessionID, TurnInterview)
	return reply, nil
}

// restart clears all session state and immediately opens a new interview.
func (s *Service) restart(ctx context.Context, sessionID, username string) (string, error) {
	if err := s.ResetSession(ctx, sessionID); err != nil {
		return "", err
	}
	reply, err := s.engine.Handle(ctx, sessionID, username, "hello")
	if err != nil {
		return "", err
	}
	return restartReplyPrefix + reply, nil
}

// Progress returns the interview progress percentage for a session.
func (s *Service) Progress(ctx context.Context, sessionID string) float64 {
	return s.engine.Progress(ctx, sessionID)
}

// IsComplete reports whether the session's interview has finished.
func (s *Service) IsComplete(ctx context.Context, sessionID string) bool {
	return s.engine.IsComplete(ctx, sessionID)
}

// RunDocumentationWorkflow triggers the documentation workflow for a
// completed interview.
func (s *Service) RunDocumentationWorkflow(ctx context.Context, sessionID string) (workflow.Result, error) {
	return s.orchestrator.Run(ctx, sessionID)
}

// ResetSession removes the interview state and the document chat history
// for a session.
func (s *Service) ResetSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Clear(ctx, sessionID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, docChatKey(sessionID)); err != nil {
		// Chat history is auxiliary state; its loss is not worth failing
		// the reset over.
		s.logger.Warn("could not clear document chat history for session %s: %v", sessionID, err)
	}
	s.logger.Info("Session %s reset", sessionID)
	return nil
}
