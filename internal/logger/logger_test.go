package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

type logRecord struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
	Op    string `json:"op"`
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("debug", "json", &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	log.WithField("op", "insert").Debug("debug message")

	var rec logRecord
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("failed to unmarshal log output: %v", err)
	}
	if rec.Msg != "debug message" {
		t.Errorf("expected msg %q, got %q", "debug message", rec.Msg)
	}
	if rec.Level != "debug" {
		t.Errorf("expected level debug, got %q", rec.Level)
	}
	if rec.Op != "insert" {
		t.Errorf("expected op field, got %q", rec.Op)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", "text", &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	log.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered, got %q", buf.String())
	}
	log.Warn("shown")
	if !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Errorf("expected warn output, got %q", buf.String())
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"bad level", "loud", "text"},
		{"bad format", "info", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.level, tt.format, &bytes.Buffer{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}
