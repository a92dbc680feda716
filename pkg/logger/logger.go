package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init builds the global logger and installs it via zap.ReplaceGlobals.
// Production gets JSON output, development a colored console encoder.
func Init(level, environment string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if environment == "development" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(log)
	return log, nil
}
