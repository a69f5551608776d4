package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"specsmith/pkg/kvstore"
	"specsmith/pkg/logx"
)

// Manager loads and saves session state through the key-value store.
// Reads that fail for any reason yield a fresh default state so a storage
// hiccup never kills a conversation.
type Manager struct {
	store  kvstore.Store
	ttl    time.Duration
	logger *logx.Logger
}

// NewManager creates a session manager. Every successful save refreshes
// the TTL so idle sessions expire.
func NewManager(store kvstore.Store, ttl time.Duration) *Manager {
	return &Manager{
		store:  store,
		ttl:    ttl,
		logger: logx.NewLogger("session"),
	}
}

func stateKey(sessionID string) string {
	return kvstore.Key(kvstore.NamespaceInterview, sessionID)
}

// Load returns the state for a session. Missing or unreadable state
// returns a default empty state, never an error.
func (m *Manager) Load(ctx context.Context, sessionID, username string) *State {
	data, err := m.store.Get(ctx, stateKey(sessionID))
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			m.logger.Warn("load failed for session %s, starting fresh: %v", sessionID, err)
		}
		return NewState(sessionID, username)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		m.logger.Warn("corrupt state for session %s, starting fresh: %v", sessionID, err)
		return NewState(sessionID, username)
	}
	if state.Username == "" {
		state.Username = username
	}
	return &state
}

// Save persists the state and refreshes its TTL.
func (m *Manager) Save(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return logx.Wrap(err, "marshal session state")
	}
	if err := m.store.Set(ctx, stateKey(state.SessionID), data, m.ttl); err != nil {
		return logx.Wrap(err, "save session state")
	}
	return nil
}

// Clear removes all persisted state for a session.
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	if err := m.store.Delete(ctx, stateKey(sessionID)); err != nil {
		return logx.Wrap(err, "clear session state")
	}
	m.logger.Info("Session %s cleared", sessionID)
	return nil
}
