package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/leafsii/kvhelper/pkg/kv"
)

func NewLogger(env string) (*zap.Logger, error) {
	var config zap.Config

	if env == "prod" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	return config.Build()
}

func NewSugar(env string) (*zap.SugaredLogger, error) {
	logger, err := NewLogger(env)
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// StoreLogger adapts a sugared logger to the kv.LogFunc used by instrumented stores.
// Store failures are logged at warn level under the "kv" logger name.
func StoreLogger(logger *zap.SugaredLogger) kv.LogFunc {
	named := logger.Named("kv")
	return func(msg string, fields ...any) {
		named.Warnw(msg, fields...)
	}
}
