// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger at the given level and installs it as zap's global.
//
// Parameters:
//   - level: one of debug, info, warn, error (empty means info)
//   - development: human-readable console output instead of JSON
//
// Returns:
//   - *zap.Logger: the configured logger; callers should Sync it on exit
//   - error: if level is unknown or the logger cannot be built
//
// Example:
//
//	logger, err := logging.New("debug", true)
//	if err != nil {
//	    log.Fatalf("Failed to initialize logger: %v", err)
//	}
//	defer logger.Sync()
func New(level string, development bool) (*zap.Logger, error) {
	var lvl zapcore.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("failed to parse log level %q: %w", level, err)
		}
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
