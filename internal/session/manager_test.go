package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSession_AddMessage(t *testing.T) {
	sess := &Session{Key: "test"}
	sess.AddMessage("user", "hello")
	sess.AddMessage("assistant", "hi there")

	history := sess.GetHistory(10)
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Role != "user" {
		t.Errorf("expected role=user, got %s", history[0].Role)
	}
	if last := sess.GetHistory(1); len(last) != 1 || last[0].Content != "hi there" {
		t.Errorf("expected newest message, got %+v", last)
	}
}

func TestManager_GetOrCreate(t *testing.T) {
	mgr := NewManager(t.TempDir())

	sess1 := mgr.GetOrCreate("test:123")
	sess2 := mgr.GetOrCreate("test:123")

	if sess1 != sess2 {
		t.Error("expected same session instance")
	}
}

func TestSession_SaveAndLoad(t *testing.T) {
	baseDir := t.TempDir()

	mgr1 := NewManager(baseDir)
	sess := mgr1.GetOrCreate("persist-test")
	sess.AddMessage("user", "What is Go?")
	sess.AddMessage("assistant", "Go is a programming language.")
	sess.AddMessage("user", "Tell me more.")

	if err := mgr1.Save(sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	mgr2 := NewManager(baseDir)
	loaded := mgr2.GetOrCreate("persist-test")

	history := loaded.GetHistory(0)
	if len(history) != 3 {
		t.Fatalf("expected 3 messages after load, got %d", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "What is Go?" {
		t.Errorf("message[0]: got role=%s content=%s", history[0].Role, history[0].Content)
	}
	if history[2].Role != "user" || history[2].Content != "Tell me more." {
		t.Errorf("message[2]: got role=%s content=%s", history[2].Role, history[2].Content)
	}
}

func TestSession_EmptySessionNotSaved(t *testing.T) {
	baseDir := t.TempDir()

	mgr := NewManager(baseDir)
	sess := mgr.GetOrCreate("empty-session")

	if err := mgr.Save(sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(baseDir, "sessions", "empty-session.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("expected no file for empty session, stat err=%v", err)
	}
}

func TestManager_ResetRemovesHistory(t *testing.T) {
	baseDir := t.TempDir()
	mgr := NewManager(baseDir)
	sess := mgr.GetOrCreate("chat:1")
	sess.AddMessage("user", "hello")
	if err := mgr.Save(sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	if err := mgr.Reset("chat:1"); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if sess.Len() != 0 {
		t.Fatalf("expected in-memory history cleared, got %d", sess.Len())
	}
	if fresh := NewManager(baseDir).GetOrCreate("chat:1"); fresh.Len() != 0 {
		t.Fatalf("expected file removed, reloaded %d messages", fresh.Len())
	}
	if err := mgr.Reset("never-saved"); err != nil {
		t.Fatalf("Reset of unknown key should succeed: %v", err)
	}
}

func TestManager_MemoryOnly(t *testing.T) {
	mgr := NewManager("")
	sess := mgr.GetOrCreate("k")
	sess.AddMessage("user", "x")
	if err := mgr.Save(sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := mgr.Reset("k"); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
}

func TestNewKey(t *testing.T) {
	a, b := NewKey(), NewKey()
	if a == b || !strings.HasPrefix(a, "chat-") {
		t.Fatalf("unexpected keys %q %q", a, b)
	}
}
