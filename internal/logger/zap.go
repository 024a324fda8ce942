// Package logger builds the zap logger used across the service.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger for the run mode. "debug" gives human-readable
// console output, "silent" discards everything, and any other mode gives
// JSON suited to log shipping.
func New(mode string) (*zap.Logger, error) {
	var config zap.Config

	switch mode {
	case "silent":
		return zap.NewNop(), nil
	case "debug":
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	// CLI output goes to stdout, so logs stay on stderr.
	config.OutputPaths = []string{"stderr"}

	return config.Build()
}
