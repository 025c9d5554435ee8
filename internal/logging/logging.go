// Package logging builds the zap logger shared by the CLI and the listener.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"arkik/internal/config"
)

// New returns a logger configured from LOG_LEVEL and LOG_FORMAT. Unknown
// levels fall back to info.
func New(cfg config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.LogFormat == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", "arkik")), nil
}
