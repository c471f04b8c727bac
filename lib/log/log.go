package log

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.Mutex
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cores   = []zapcore.Core{consoleCore()}
	loggers = make(map[string]*zap.SugaredLogger)
)

func init() {
	if lvl := os.Getenv("MINIWALLET_LOG_LEVEL"); lvl != "" {
		SetLevel(lvl)
	}
}

func consoleCore() zapcore.Core {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level)
}

// Logger returns a named logger; the same name yields the same logger.
func Logger(name string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[name]; ok {
		return l
	}
	l := zap.New(zapcore.NewTee(cores...)).Named(name).Sugar()
	loggers[name] = l
	return l
}

// SetLevel changes the level of all loggers, existing and future.
func SetLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "debug":
		level.SetLevel(zapcore.DebugLevel)
	case "info":
		level.SetLevel(zapcore.InfoLevel)
	case "warn":
		level.SetLevel(zapcore.WarnLevel)
	case "error":
		level.SetLevel(zapcore.ErrorLevel)
	}
}

// SetLogFile adds a rotating file sink beside the console one. Loggers
// created before the call keep writing to the console only.
func SetLogFile(path string) {
	mu.Lock()
	defer mu.Unlock()
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // MB
		MaxBackups: 3,
	})
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), w, level))
}
