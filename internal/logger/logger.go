// Package logger holds the process-wide zap logger used by every Shogun
// component.
//
// Log starts out as a no-op logger so library consumers and tests that never
// call InitLogger stay silent. Binaries call InitLogger once at startup:
//
//	logger.InitLogger(cfg.LogLevel) // debug, info, warn, error
//
//	logger.Log.Info("credential created",
//	    zap.String("method", "web3"),
//	    zap.String("username", cred.Username),
//	)
//
// Never log passwords, private keys or signatures.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log = zap.NewNop()

func InitLogger(level string) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var err error
	Log, err = cfg.Build()
	if err != nil {
		panic(err)
	}
}

// Named returns a child of Log tagged with the component name.
func Named(component string) *zap.Logger {
	return Log.Named(component)
}
