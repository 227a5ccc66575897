package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production JSON logger for the given service. Output goes to
// stderr unless explicit output paths are provided.
func New(service string, outputPaths ...string) *zap.SugaredLogger {
	return NewWithLevel(service, zapcore.InfoLevel, outputPaths...)
}

// NewWithLevel is New with an explicit minimum level. Long running daemons
// use it to silence per-request logs without rebuilding the config.
func NewWithLevel(service string, level zapcore.Level, outputPaths ...string) *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()

	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	config := zap.Config{
		Development:       false,
		DisableCaller:     false,
		DisableStacktrace: false,
		Sampling:          nil,
		Encoding:          "json",
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		Level:             zap.NewAtomicLevelAt(level),
		InitialFields:     map[string]any{"service": service, "pid": os.Getpid()},
	}

	if len(outputPaths) != 0 {
		config.OutputPaths = outputPaths
	}

	return zap.Must(config.Build()).Sugar()
}

// Nop returns a logger that discards everything. Used by tests and by
// callers embedding the pool into an application with its own logging.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
