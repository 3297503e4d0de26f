// Package diag provides the append-only diagnostic sink. Every degraded path
// in the engine writes here; nothing in here is ever read back into
// persona-visible context.
package diag

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Degradation classes written with the "degraded" field.
const (
	StorageUnavailable = "storage_unavailable"
	IntegrityFailure   = "integrity_failure"
	EmbeddingFailure   = "embedding_failure"
	LowConfidence      = "low_confidence"
	TokenizerFallback  = "tokenizer_fallback"
)

// Open builds a production JSON logger appending to the given file path.
// An empty path logs to stderr only.
func Open(path string) (*zap.Logger, error) {
	if path == "" {
		return newStderrLogger(), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(f),
		zapcore.InfoLevel,
	)
	return zap.New(core), nil
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func newStderrLogger() *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(os.Stderr),
		zapcore.InfoLevel,
	)
	return zap.New(core)
}

// Degraded logs one degraded-path event with the taxonomy class and the
// subsystem that hit it.
func Degraded(log *zap.Logger, class, subsystem string, err error) {
	if log == nil {
		return
	}
	fields := []zap.Field{
		zap.String("degraded", class),
		zap.String("subsystem", subsystem),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	log.Warn("degraded path", fields...)
}
