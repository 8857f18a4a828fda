package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	Set(zap.New(core))
	defer func() { defaultLogger = nil }()

	Debug("hidden %d", 1)
	Info("hidden %d", 2)
	Warn("shown %d", 3)
	Error("shown %d", 4)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "shown 3" || entries[1].Message != "shown 4" {
		t.Errorf("unexpected messages: %q, %q", entries[0].Message, entries[1].Message)
	}
}

func TestNoopBeforeInit(t *testing.T) {
	defaultLogger = nil
	Info("must not panic")
	Sync()
}

func TestInit(t *testing.T) {
	Init("debug", "text")
	if defaultLogger == nil {
		t.Fatal("Init did not set the default logger")
	}
	Init("info", "json")
	if defaultLogger == nil {
		t.Fatal("Init did not set the default logger")
	}
	defaultLogger = nil
}
