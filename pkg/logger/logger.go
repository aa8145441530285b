package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger = zap.NewNop()

// Init 初始化全局 logger；level 非法时回退 info
func Init(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	log = l
	return nil
}

func Sync() { _ = log.Sync() }

func Debug(msg string, fields ...zap.Field) { log.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { log.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { log.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { log.Error(msg, fields...) }

// L 返回底层 zap.Logger（中间件等需要直接持有时使用）
func L() *zap.Logger { return log }
