package logging

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey int

const loggerKey ctxKey = iota

var (
	defaultLogger     *zap.Logger
	defaultLoggerOnce sync.Once
)

// Config selects the encoder and level. Empty fields fall back to the
// ENV and LOG_LEVEL environment variables.
type Config struct {
	Env   string
	Level string
}

func (c Config) development() bool {
	env := strings.ToLower(strings.TrimSpace(c.Env))
	return env == "dev" || env == "development"
}

// New builds a zap logger: console output with colored levels in
// development, JSON otherwise.
func New(cfg Config) (*zap.Logger, error) {
	if cfg.Env == "" {
		cfg.Env = os.Getenv("ENV")
	}
	if cfg.Level == "" {
		cfg.Level = os.Getenv("LOG_LEVEL")
	}

	var zcfg zap.Config
	if cfg.development() {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.DisableCaller = false
	}

	if cfg.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(cfg.Level)); err == nil {
			zcfg.Level = zap.NewAtomicLevelAt(level)
		}
	}

	return zcfg.Build()
}

// DefaultLogger returns the process-wide logger built from the environment.
func DefaultLogger() *zap.Logger {
	defaultLoggerOnce.Do(func() {
		l, err := New(Config{})
		if err != nil {
			_, _ = os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
			l = zap.NewNop()
		}
		defaultLogger = l
	})
	return defaultLogger
}

// WithLogger attaches logger to ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored on ctx, or the default logger.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return DefaultLogger()
	}
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return DefaultLogger()
}

func L(ctx context.Context) *zap.Logger {
	return FromContext(ctx)
}

// WithFields adds structured fields to the logger in context.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(fields...))
}

// Or returns l, or a no-op logger when l is nil.
func Or(l *zap.Logger) *zap.Logger {
	if l != nil {
		return l
	}
	return zap.NewNop()
}
