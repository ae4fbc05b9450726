package logger

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	log   atomic.Pointer[zap.Logger]
)

func init() {
	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   zapcore.CapitalColorLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(os.Stdout),
		level,
	)

	log.Store(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
}

// SetLevel accepts debug/info/warn/error; unknown values keep the current level.
func SetLevel(lvl string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(lvl)))); err != nil {
		Warn("unknown log level, keeping current", zap.String("level", lvl))
		return
	}
	level.SetLevel(l)
}

// Replace swaps the process logger, tests use it with zaptest/observer cores.
func Replace(l *zap.Logger) {
	if l != nil {
		log.Store(l)
	}
}

// L returns the underlying logger for callers that want their own fields.
func L() *zap.Logger { return log.Load() }

func Sync() { _ = log.Load().Sync() }

// 快捷方法
func Info(msg string, fields ...zap.Field) { log.Load().Info(msg, fields...) }
func Infof(format string, args ...interface{}) {
	log.Load().Info(fmt.Sprintf(format, args...))
}
func Warn(msg string, fields ...zap.Field)  { log.Load().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { log.Load().Error(msg, fields...) }

func Errorf(format string, args ...interface{}) {
	log.Load().Error(fmt.Sprintf(format, args...))
}

func Debug(msg string, fields ...zap.Field) { log.Load().Debug(msg, fields...) }
