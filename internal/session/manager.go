package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one remembered line of a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the conversation history of one chat.
type Session struct {
	Key      string
	Messages []*Message
	mu       sync.RWMutex
}

// AddMessage adds a message to the session
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, &Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// GetHistory returns the last n messages; n <= 0 returns all of them.
func (s *Session) GetHistory(limit int) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.Messages) {
		limit = len(s.Messages)
	}
	result := make([]*Message, limit)
	copy(result, s.Messages[len(s.Messages)-limit:])
	return result
}

// Len returns the number of stored messages.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// Manager keeps sessions in memory and mirrors them to JSONL files.
type Manager struct {
	dir      string
	sessions map[string]*Session
	mu       sync.Mutex
}

// NewManager creates a session manager under <baseDir>/sessions. An empty
// baseDir keeps sessions in memory only.
func NewManager(baseDir string) *Manager {
	dir := ""
	if strings.TrimSpace(baseDir) != "" {
		dir = filepath.Join(baseDir, "sessions")
	}
	return &Manager{
		dir:      dir,
		sessions: make(map[string]*Session),
	}
}

// NewKey returns a fresh session key.
func NewKey() string {
	return "chat-" + uuid.NewString()[:8]
}

// GetOrCreate gets or creates a session
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[key]; ok {
		return sess
	}

	sess := &Session{Key: key}
	m.loadFromDisk(sess)
	m.sessions[key] = sess
	return sess
}

// Reset drops the history of key in memory and on disk.
func (m *Manager) Reset(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[key]; ok {
		sess.mu.Lock()
		sess.Messages = nil
		sess.mu.Unlock()
	}
	if m.dir == "" {
		return nil
	}
	if err := os.Remove(m.sessionPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Save persists session to disk
func (m *Manager) Save(sess *Session) error {
	if m.dir == "" {
		return nil
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()

	if len(sess.Messages) == 0 {
		return nil
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}

	path := m.sessionPath(sess.Key)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, msg := range sess.Messages {
		if err := enc.Encode(msg); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) loadFromDisk(sess *Session) {
	if m.dir == "" {
		return
	}
	f, err := os.Open(m.sessionPath(sess.Key))
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err == nil {
			sess.Messages = append(sess.Messages, &msg)
		}
	}
}

func (m *Manager) sessionPath(key string) string {
	safeKey := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(key)
	return filepath.Join(m.dir, safeKey+".jsonl")
}
