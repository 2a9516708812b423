package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		development bool
		expected    zapcore.Level
		wantErr     bool
	}{
		{name: "default level", expected: zapcore.InfoLevel},
		{name: "debug", level: "debug", development: true, expected: zapcore.DebugLevel},
		{name: "warn", level: "warn", expected: zapcore.WarnLevel},
		{name: "unknown level", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.development)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !logger.Core().Enabled(tt.expected) {
				t.Errorf("level %v not enabled", tt.expected)
			}
			if tt.expected > zapcore.DebugLevel && logger.Core().Enabled(tt.expected-1) {
				t.Errorf("level %v enabled, want disabled", tt.expected-1)
			}
			if zap.L() != logger {
				t.Error("New() did not replace the global logger")
			}
		})
	}
}
