package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// One logger per concern, each writing to its own rotating file.
var (
	ErrorLogger    *zap.Logger
	AuditLogger    *zap.Logger
	RequestLogger  *zap.Logger
	SecurityLogger *zap.Logger
	SystemLogger   *zap.Logger
)

func newLogger(filePath string, level zapcore.Level) *zap.Logger {
	ws := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
	})

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		ws,
		level,
	)
	return zap.New(core)
}

func InitLoggers() {
	ErrorLogger = newLogger("logs/errors.log", zapcore.ErrorLevel)
	AuditLogger = newLogger("logs/audit.log", zapcore.InfoLevel)
	RequestLogger = newLogger("logs/request.log", zapcore.InfoLevel)
	SecurityLogger = newLogger("logs/security.log", zapcore.WarnLevel)
	SystemLogger = newLogger("logs/system.log", zapcore.InfoLevel)
}

func SyncLoggers() {
	_ = ErrorLogger.Sync()
	_ = AuditLogger.Sync()
	_ = RequestLogger.Sync()
	_ = SecurityLogger.Sync()
	_ = SystemLogger.Sync()
}
