package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		want  log.Level
	}{
		{"debug", log.DebugLevel},
		{"info", log.InfoLevel},
		{"warn", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"DEBUG", log.DebugLevel},
		{" Info ", log.InfoLevel},
		{"", log.InfoLevel},
		{"verbose", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, ParseLevel(tt.level))
			assert.Equal(t, tt.want, New(tt.level).GetLevel())
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", FieldPath, "Program.cs")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "Program.cs")
}

func TestDefaultAndSetLevel(t *testing.T) {
	// modifies the process wide logger
	original := Default()
	t.Cleanup(func() { SetDefault(original) })

	SetDefault(New("info"))
	SetLevel("debug")
	assert.Equal(t, log.DebugLevel, Default().GetLevel())
	SetLevel("error")
	assert.Equal(t, log.ErrorLevel, Default().GetLevel())
}

func TestContext(t *testing.T) {
	t.Parallel()

	logger := New("debug")
	ctx := WithLogger(context.Background(), logger)
	require.Same(t, logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
