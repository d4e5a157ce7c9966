package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"research/config"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		l, err := New(config.LoggingConfig{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", format, err)
		}
		if !l.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("%s: expected debug level enabled", format)
		}
	}
}

func TestNew_Level(t *testing.T) {
	l, err := New(config.LoggingConfig{Level: "WARN"})
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("expected info disabled at warn level")
	}
	if !l.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("expected error enabled at warn level")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
	if l := Must(config.LoggingConfig{Level: "loud"}); l == nil {
		t.Error("Must should never return nil")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Error("expected no-op logger")
	}
	l := zap.NewExample()
	if OrNop(l) != l {
		t.Error("expected logger passed through")
	}
}
