// Package history is the durable chat-session log. All sessions live in
// one JSON document saved atomically; a corrupted file is renamed aside
// and the manager starts fresh rather than crashing.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"geode/util"
)

// Message types recorded alongside chat content.
const (
	TypeText     = "text"
	TypeToolCall = "tool_call"
	TypeError    = "error"
)

type ChatMessage struct {
	Timestamp   time.Time `json:"timestamp"`
	Sender      string    `json:"sender"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"`
}

type ChatSession struct {
	SessionID string        `json:"session_id"`
	Title     string        `json:"title"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Messages  []ChatMessage `json:"messages"`
}

type historyFile struct {
	Sessions []*ChatSession `json:"sessions"`
}

// Manager owns the session map and its persistence. Safe for concurrent
// use; every mutation persists before returning.
type Manager struct {
	mu          sync.Mutex
	path        string
	maxSessions int
	sessions    map[string]*ChatSession
}

// NewManager loads existing history from path. Loading never fails hard:
// a missing or empty file starts fresh, an unparseable one is renamed to
// <path>.corrupted.<unix>.json first.
func NewManager(path string, maxSessions int) *Manager {
	m := &Manager{
		path:        path,
		maxSessions: maxSessions,
		sessions:    make(map[string]*ChatSession),
	}
	m.load()
	return m
}

func (m *Manager) load() {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("chat history file not found, will be created on first save", "path", m.path)
		return
	}
	if err != nil {
		slog.Error("could not read chat history file, starting fresh", "path", m.path, "error", err)
		return
	}
	if len(data) == 0 {
		slog.Warn("chat history file is empty, starting fresh", "path", m.path)
		return
	}

	var file historyFile
	if err := json.Unmarshal(data, &file); err != nil {
		backup := fmt.Sprintf("%s.corrupted.%d.json", m.path, time.Now().Unix())
		slog.Error("could not parse chat history, backing up and starting fresh",
			"path", m.path, "backup", backup, "error", err)
		if renameErr := os.Rename(m.path, backup); renameErr != nil {
			slog.Error("could not rename corrupted history file", "error", renameErr)
		}
		return
	}

	for _, s := range file.Sessions {
		if s != nil && s.SessionID != "" {
			m.sessions[s.SessionID] = s
		}
	}
	slog.Info("chat history loaded", "sessions", len(m.sessions), "path", m.path)
}

// CreateSession starts a new session. An empty title gets a timestamped
// default.
func (m *Manager) CreateSession(title string) *ChatSession {
	now := time.Now()
	if title == "" {
		title = "Chat - " + now.Format("2006-01-02 15:04")
	}

	session := &ChatSession{
		SessionID: uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []ChatMessage{},
	}

	m.mu.Lock()
	m.sessions[session.SessionID] = session
	m.saveLocked()
	m.mu.Unlock()

	slog.Info("created chat session", "title", title, "session_id", session.SessionID)
	return session
}

// AddMessage appends to a session and persists. Unknown session IDs are
// logged and dropped, not errors; the UI may race a deletion.
func (m *Manager) AddMessage(sessionID, sender, content, messageType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		slog.Warn("attempted to add message to non-existent session", "session_id", sessionID)
		return
	}

	session.Messages = append(session.Messages, ChatMessage{
		Timestamp:   time.Now(),
		Sender:      sender,
		Content:     content,
		MessageType: messageType,
	})
	session.UpdatedAt = time.Now()
	m.saveLocked()
}

func (m *Manager) Session(sessionID string) (*ChatSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// RecentSessions returns up to limit sessions, newest-updated first.
func (m *Manager) RecentSessions(limit int) []*ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make([]*ChatSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions
}

// DeleteSession removes a session and persists. Returns false for an
// unknown ID.
func (m *Manager) DeleteSession(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		slog.Warn("attempted to delete non-existent session", "session_id", sessionID)
		return false
	}
	delete(m.sessions, sessionID)
	m.saveLocked()
	slog.Info("deleted session", "session_id", sessionID)
	return true
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// saveLocked persists all sessions, evicting the oldest-updated beyond
// maxSessions first. Callers hold m.mu.
func (m *Manager) saveLocked() {
	if m.maxSessions > 0 && len(m.sessions) > m.maxSessions {
		sessions := make([]*ChatSession, 0, len(m.sessions))
		for _, s := range m.sessions {
			sessions = append(sessions, s)
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
		})
		m.sessions = make(map[string]*ChatSession, m.maxSessions)
		for _, s := range sessions[:m.maxSessions] {
			m.sessions[s.SessionID] = s
		}
	}

	file := historyFile{Sessions: make([]*ChatSession, 0, len(m.sessions))}
	for _, s := range m.sessions {
		file.Sessions = append(file.Sessions, s)
	}
	sort.Slice(file.Sessions, func(i, j int) bool {
		return file.Sessions[i].CreatedAt.Before(file.Sessions[j].CreatedAt)
	})

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		slog.Error("failed to encode chat history", "error", err)
		return
	}
	if err := util.AtomicWriteFile(m.path, data, 0600); err != nil {
		slog.Error("failed to save chat history", "error", err)
	}
}
