package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSONRenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("hidden")
	l.Error("boom", "error", errors.New("bad"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["err"] != "bad" {
		t.Errorf("expected err key, got %v", rec)
	}
	if _, ok := rec["error"]; ok {
		t.Error("error key should be renamed")
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNew_DebugFileReceivesDebug(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "debug.log")

	l, err := New(Options{Level: "warn", Output: &buf, DebugFile: path})
	if err != nil {
		t.Fatal(err)
	}
	l.With("run", "r1").Debug("graph built", "nodes", 3)
	l.Warn("slow")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(buf.String(), "graph built") {
		t.Error("console should not receive debug records")
	}
	if !strings.Contains(buf.String(), "slow") {
		t.Error("console should receive warnings")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{"debug log started", "graph built", "run=r1", "slow"} {
		if !strings.Contains(content, want) {
			t.Errorf("debug file missing %q:\n%s", want, content)
		}
	}
}
