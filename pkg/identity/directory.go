// Package identity resolves the user and chat metadata that scope artifact
// paths: which group a user belongs to and what a chat session is titled.
package identity

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"specsmith/pkg/logx"
)

// DefaultGroup is used when a user has no group assignment.
const DefaultGroup = "default"

const directorySchema = `
CREATE TABLE IF NOT EXISTS users (
    username   TEXT PRIMARY KEY,
    group_name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chats (
    session_id TEXT PRIMARY KEY,
    title      TEXT NOT NULL
);
`

// Directory is the SQLite-backed lookup for user groups and chat titles.
type Directory struct {
	db     *sql.DB
	logger *logx.Logger
}

// OpenDirectory opens (or creates) the directory database at dbPath.
func OpenDirectory(dbPath string) (*Directory, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open directory database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping directory database: %w", err)
	}
	if _, err := db.Exec(directorySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize directory schema: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Directory{db: db, logger: logx.NewLogger("identity")}, nil
}

// GroupName returns the group a user belongs to. Unknown users fall back
// to the default group rather than failing.
func (d *Directory) GroupName(ctx context.Context, username string) string {
	var group string
	row := d.db.QueryRowContext(ctx,
		`SELECT group_name FROM users WHERE username = ?`, username)
	if err := row.Scan(&group); err != nil {
		if err != sql.ErrNoRows {
			d.logger.Warn("group lookup for %s failed: %v", username, err)
		}
		return DefaultGroup
	}
	return group
}

// SetGroup assigns a user to a group.
func (d *Directory) SetGroup(ctx context.Context, username, group string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO users (username, group_name) VALUES (?, ?)
		ON CONFLICT(username) DO UPDATE SET group_name = excluded.group_name`,
		username, group)
	if err != nil {
		return fmt.Errorf("set group for %s: %w", username, err)
	}
	return nil
}

// ChatTitle returns the title of a chat session. Sessions with no stored
// title fall back to a title derived from the username and session ID.
func (d *Directory) ChatTitle(ctx context.Context, sessionID, username string) string {
	var title string
	row := d.db.QueryRowContext(ctx,
		`SELECT title FROM chats WHERE session_id = ?`, sessionID)
	if err := row.Scan(&title); err != nil {
		if err != sql.ErrNoRows {
			d.logger.Warn("title lookup for %s failed: %v", sessionID, err)
		}
		if username != "" {
			return fmt.Sprintf("%s-Interview-%s", username, sessionID)
		}
		return fmt.Sprintf("Interview-%s", sessionID)
	}
	return title
}

// SetChatTitle stores a chat session title.
func (d *Directory) SetChatTitle(ctx context.Context, sessionID, title string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO chats (session_id, title) VALUES (?, ?)
		ON CONFLICT(session_id) DO UPDATE SET title = excluded.title`,
		sessionID, title)
	if err != nil {
		return fmt.Errorf("set title for %s: %w", sessionID, err)
	}
	return nil
}

// Close releases the database.
func (d *Directory) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close directory database: %w", err)
	}
	return nil
}
