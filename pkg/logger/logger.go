package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production environments get JSON output at info level,
// everything else gets the colored development console encoder at debug level.
func New(env string, debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(env) {
	case "prod", "production", "staging":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if debug {
			cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg.Build(zap.AddStacktrace(zap.ErrorLevel))
}

// Nop returns a logger that discards everything. Used by tests and optional collaborators.
func Nop() *zap.Logger {
	return zap.NewNop()
}
