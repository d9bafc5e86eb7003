package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log = zap.NewNop()

// Init inicializa el logger global con el nivel indicado ("debug", "info", "warn"...).
// Un nivel desconocido se trata como info.
func Init(level string) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "json"            // Logs estructurados en JSON
	cfg.EncoderConfig.TimeKey = "ts" // timestamp
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	log = built
}

// Sugar retorna un logger más “friendly” para usar con printf-like
func Sugar() *zap.SugaredLogger {
	return log.Sugar()
}

// Logger retorna el logger estructurado
func Logger() *zap.Logger {
	return log
}
