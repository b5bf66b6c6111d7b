package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/seenimoa/secpack/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.LoggingConfig
		debug  bool
		errors bool
	}{
		{"info console", config.LoggingConfig{Level: "info", Format: "console"}, false, true},
		{"debug json", config.LoggingConfig{Level: "DEBUG", Format: "json"}, true, true},
		{"error", config.LoggingConfig{Level: "error"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.debug, logger.Core().Enabled(zapcore.DebugLevel))
			assert.Equal(t, tt.errors, logger.Core().Enabled(zapcore.ErrorLevel))
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "verbose"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verbose")
}
