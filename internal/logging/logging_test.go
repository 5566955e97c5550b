package logging_test

import (
	"testing"

	"github.com/bruwbird/codex/internal/logging"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" DEBUG ": zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		if diff := cmp.Diff(want, logging.ParseLevel(in)); diff != "" {
			t.Fatalf("ParseLevel(%q) mismatch (-want +got):\n%s", in, diff)
		}
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	t.Parallel()

	logger, err := logging.New("warn")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info must be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("warn must be enabled at warn level")
	}
}
