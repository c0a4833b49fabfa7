package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/intrntsrfr/cosmos/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the console logger cosmos writes to stdout.
func New(c config.Logging) (*zap.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	opts := []zap.Option{}
	if c.Development {
		encoderConfig.CallerKey = "caller"
		opts = append(opts, zap.AddCaller(), zap.Development())
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core, opts...), nil
}

// WithIdentity names the logger after the bot and tags every line with it.
func WithIdentity(l *zap.Logger, name, release string) *zap.Logger {
	return l.Named(name).With(zap.String("bot", name), zap.String("release", release))
}

func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return l, fmt.Errorf("invalid log level: %s (expected: debug, info, warn, error)", level)
	}
	return l, nil
}
