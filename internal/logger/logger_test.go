package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetup_WritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Info("auth session created", slog.String("session_id", "sess-1"), slog.String("provider", "google"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}

	if entry["msg"] != "auth session created" {
		t.Errorf("msg = %q, want %q", entry["msg"], "auth session created")
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %q, want %q", entry["session_id"], "sess-1")
	}
	if entry["provider"] != "google" {
		t.Errorf("provider = %q, want %q", entry["provider"], "google")
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected time field in log entry")
	}
}

func TestSetup_SuppressesBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelWarn)

	l.Info("http_request")
	if buf.Len() != 0 {
		t.Errorf("info log should be suppressed at warn level, got: %s", buf.String())
	}

	l.Warn("rate limit exceeded", slog.String("user_id", "ident-123"))
	if buf.Len() == 0 {
		t.Error("warn log should be written at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{" debug ", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSetupDefault_ConfiguresGlobalLogger(t *testing.T) {
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })

	var buf bytes.Buffer
	SetupDefault(&buf)

	slog.Info("database connection established")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output from global logger: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "database connection established" {
		t.Errorf("msg = %q, want %q", entry["msg"], "database connection established")
	}
}

func TestSetupDefault_HonorsLogLevelEnv(t *testing.T) {
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })
	t.Setenv("LOG_LEVEL", "error")

	var buf bytes.Buffer
	SetupDefault(&buf)

	slog.Info("http_request")
	slog.Warn("slow preview fetch")
	if buf.Len() != 0 {
		t.Errorf("info/warn should be suppressed at error level, got: %s", buf.String())
	}

	slog.Error("server listen error")
	if buf.Len() == 0 {
		t.Error("error log should be written at error level")
	}
}
