package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_CreatesDirAndLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	log, err := NewLogger(dir, "debug")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Info("test_message_from_logging_test")
	_ = log.Sync()

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("log dir missing: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "statuspulse.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"test_message_from_logging_test"`) {
		t.Fatalf("log line missing: %s", data)
	}
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger(t.TempDir(), "chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
