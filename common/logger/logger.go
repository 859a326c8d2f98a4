package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultFileMaxSizeMB = 64
	DefaultMaxBackups    = 5
	DefaultMaxAgeDays    = 14
)

type Config struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"maxSizeMB"`
	MaxBackups int    `json:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays"`
}

func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return l, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}

// New builds a console logger on stderr, teeing JSON records into a rotating
// file when cfg.File is set.
func New(cfg Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	enabler := zap.NewAtomicLevelAt(level)

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), enabler),
	}
	if cfg.File != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(newRotator(cfg)),
			enabler,
		))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// NewFileOnly is New without the console core.
func NewFileOnly(cfg Config) (*zap.Logger, error) {
	if cfg.File == "" {
		return nil, fmt.Errorf("log file not configured")
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(newRotator(cfg)),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core), nil
}

func newRotator(cfg Config) *lumberjack.Logger {
	l := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	if l.MaxSize <= 0 {
		l.MaxSize = DefaultFileMaxSizeMB
	}
	if l.MaxBackups <= 0 {
		l.MaxBackups = DefaultMaxBackups
	}
	if l.MaxAge <= 0 {
		l.MaxAge = DefaultMaxAgeDays
	}
	return l
}
