package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		setLevel  Level
		logLevel  Level
		shouldLog bool
	}{
		{"Debug at Debug level", LevelDebug, LevelDebug, true},
		{"Info at Debug level", LevelDebug, LevelInfo, true},
		{"Debug at Info level", LevelInfo, LevelDebug, false},
		{"Info at Info level", LevelInfo, LevelInfo, true},
		{"Warn at Info level", LevelInfo, LevelWarn, true},
		{"Info at Warn level", LevelWarn, LevelInfo, false},
		{"Error at Warn level", LevelWarn, LevelError, true},
		{"Warn at Error level", LevelError, LevelWarn, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, tt.setLevel, false)

			switch tt.logLevel {
			case LevelDebug:
				logger.Debug("test message")
			case LevelInfo:
				logger.Info("test message")
			case LevelWarn:
				logger.Warn("test message")
			case LevelError:
				logger.Error("test message")
			}

			hasOutput := buf.Len() > 0
			if hasOutput != tt.shouldLog {
				t.Errorf("Expected shouldLog=%v, got output=%q", tt.shouldLog, buf.String())
			}
		})
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelInfo, true)

	ctx := WithRunID(context.Background(), "0123456789abcdef")
	logger.WithField("variant", "edge").InfoContext(ctx, "built %d tags", 2)

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON output: %v (%q)", err, buf.String())
	}
	if entry.Message != "built 2 tags" {
		t.Errorf("Expected message 'built 2 tags', got %q", entry.Message)
	}
	if entry.Level != "INFO" {
		t.Errorf("Expected level INFO, got %q", entry.Level)
	}
	if entry.RunID != "0123456789abcdef" {
		t.Errorf("Expected full run ID in JSON, got %q", entry.RunID)
	}
	if entry.Fields["variant"] != "edge" {
		t.Errorf("Expected field variant=edge, got %v", entry.Fields)
	}
}

func TestTextFormat_ShortRunIDAndSortedFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelInfo, false)

	ctx := WithRunID(context.Background(), "0123456789abcdef")
	logger.WithFields(map[string]interface{}{"b": 2, "a": 1}).InfoContext(ctx, "hello")

	out := buf.String()
	if !strings.Contains(out, "[01234567]") {
		t.Errorf("Expected shortened run ID, got %q", out)
	}
	if !strings.Contains(out, "{a=1, b=2}") {
		t.Errorf("Expected sorted fields, got %q", out)
	}
}

func TestChildLoggersShareSink(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithWriter(&buf, LevelInfo, false)
	child := root.Named("registry")

	root.SetLevel(LevelError)
	child.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("Expected child to inherit level change, got %q", buf.String())
	}

	child.Error("shown")
	if !strings.Contains(buf.String(), "component=registry") {
		t.Errorf("Expected component field, got %q", buf.String())
	}
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelInfo, false)

	ctx := WithLogFields(context.Background(), map[string]interface{}{"namespace": "ci"})
	ctx = WithLogFields(ctx, map[string]interface{}{"variant": "edge"})
	logger.InfoContext(ctx, "x")

	out := buf.String()
	if !strings.Contains(out, "namespace=ci") || !strings.Contains(out, "variant=edge") {
		t.Errorf("Expected merged context fields, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": LevelDebug, "INFO": LevelInfo, "warning": LevelWarn,
		"error": LevelError, "nonsense": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestOrDefault(t *testing.T) {
	if OrDefault(nil) != Default() {
		t.Error("OrDefault(nil) should return the default logger")
	}
	l := Discard()
	if OrDefault(l) != l {
		t.Error("OrDefault(l) should return l")
	}
}
