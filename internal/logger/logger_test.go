package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CustomWriter(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})
	log.Info("test message")

	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), `"level":"INFO"`)
}

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantJSON    bool
	}{
		{"production uses json", "production", true},
		{"development uses pretty", "development", false},
		{"empty uses pretty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: slog.LevelInfo, Environment: tt.environment, Writer: &buf, NoColor: true})
			log.Info("test")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"test"`)
			} else {
				assert.Contains(t, buf.String(), "INF test")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestPrettyHandler_NoColor(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelDebug, Format: "pretty", Writer: &buf, NoColor: true})

	log.Warn("unmapped name", "token", "りえぞー", "column", "main gm")

	line := buf.String()
	assert.NotContains(t, line, "\033[")
	assert.Contains(t, line, "WRN unmapped name")
	assert.Contains(t, line, "token=りえぞー")
	assert.Contains(t, line, `column="main gm"`)
}

func TestPrettyHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	h.noColor = true

	slog.New(h).WithGroup("sheet").Info("row", "line", 3)

	assert.Contains(t, buf.String(), "sheet.line=3")
}

func TestPrettyHandler_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelWarn, Format: "pretty", Writer: &buf, NoColor: true})

	log.Info("hidden")
	log.Debug("hidden too")

	assert.Empty(t, buf.String())
}

func TestCountingHandler(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelError, Format: "json", Writer: &buf})

	log.Info("ignored")
	log.Warn("first")
	log.WithField("title", "モノクローム").Warn("second")
	log.WithError(errors.New("boom")).Error("failed")

	counts := log.Counts()
	assert.Equal(t, 2, counts.Warnings())
	assert.Equal(t, 1, counts.Errors())

	// Warnings were counted but filtered by level.
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))

	counts.Reset()
	assert.Zero(t, counts.Warnings())
	assert.Zero(t, counts.Errors())
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.WithFields(map[string]any{"scenario": "深夜の羊", "count": 2}).Info("parsed")

	out := buf.String()
	assert.Contains(t, out, `"scenario":"深夜の羊"`)
	assert.Contains(t, out, `"count":2`)
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.WithFields(map[string]any{"run": "run-abc", "env": "test"}).
		WithError(errors.New("close index: busy")).
		Error("shutdown failed")

	out := buf.String()
	assert.Contains(t, out, `"run":"run-abc"`)
	assert.Contains(t, out, `"error":"close index: busy"`)
	assert.Contains(t, out, `"msg":"shutdown failed"`)
}

func TestDiscard(t *testing.T) {
	log := Discard()
	require.NotNil(t, log)

	log.Warn("dropped")
	assert.Equal(t, 1, log.Counts().Warnings())
}
