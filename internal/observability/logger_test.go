package observability

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestNewLoggerDefaults(t *testing.T) {
	logger := NewLogger(DefaultLoggingConfig())
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestNewLoggerLevelApplied(t *testing.T) {
	cfg := DefaultLoggingConfig()
	cfg.Level = "error"
	logger := NewLogger(cfg)
	assert.Equal(t, zerolog.ErrorLevel, logger.GetLevel())
}
