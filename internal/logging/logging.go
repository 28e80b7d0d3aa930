// Package logging builds the zap loggers used by the dbscan command.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level maps a -v count to a zap level: 0 is warn, 1 info, 2 and above debug.
func Level(verbosity int) zapcore.Level {
	switch {
	case verbosity <= 0:
		return zap.WarnLevel
	case verbosity == 1:
		return zap.InfoLevel
	}
	return zap.DebugLevel
}

// New returns a JSON production logger or a human-readable console logger.
// Output goes to stderr so command output on stdout stays parseable.
func New(json bool, verbosity int) (*zap.Logger, error) {
	return newLogger(json, verbosity, zapcore.Lock(os.Stderr))
}

func newLogger(json bool, verbosity int, out zapcore.WriteSyncer) (*zap.Logger, error) {
	var encoder zapcore.Encoder
	if json {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cfg.CallerKey = ""
		encoder = zapcore.NewConsoleEncoder(cfg)
	}
	core := zapcore.NewCore(encoder, out, zap.NewAtomicLevelAt(Level(verbosity)))
	return zap.New(core), nil
}
