package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log 全局日志实例，仅供启动流程和中间件使用，业务服务通过构造函数注入
var Log = zap.NewNop()

// Options 日志配置
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Debug  bool
}

// New 创建 zap 日志实例
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return nil, err
		}
	}

	var cfg zap.Config
	if opts.Debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if opts.Format != "" {
		cfg.Encoding = opts.Format
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build(zap.AddCaller())
}

// Init 初始化全局日志
func Init(opts Options) (*zap.Logger, error) {
	l, err := New(opts)
	if err != nil {
		return nil, err
	}
	Log = l
	zap.ReplaceGlobals(l)
	return l, nil
}

// Sync 刷新缓冲区
func Sync() {
	if err := Log.Sync(); err != nil && !isStdSyncErr(err) {
		os.Stderr.WriteString("logger sync failed: " + err.Error() + "\n")
	}
}

// stdout/stderr 在部分平台上不支持 fsync
func isStdSyncErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}
