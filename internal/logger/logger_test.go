package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantDebug bool
		wantErr   bool
	}{
		{"production", Options{}, false, false},
		{"development", Options{Development: true}, true, false},
		{"explicit level", Options{Level: "debug", Format: "json"}, true, false},
		{"quiet development", Options{Development: true, Level: "warn", Format: "console"}, false, false},
		{"unknown level", Options{Level: "loud"}, false, true},
		{"unknown format", Options{Format: "xml"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDebug, log.Core().Enabled(zapcore.DebugLevel))
			log.Info("built")
		})
	}
}
