package infra

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"

	"github.com/tnqbao/gau-ads-orchestrator/config"
)

type LoggerClient struct {
	stdout *slog.Logger
	otel   *slog.Logger
}

func InitLoggerClient(cfg *config.EnvConfig) *LoggerClient {
	level := slog.LevelInfo
	if cfg.Environment.Mode == "development" {
		level = slog.LevelDebug
	}

	stdout := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("service", cfg.Grafana.ServiceName, "env", cfg.Environment.Mode)

	return &LoggerClient{
		stdout: stdout,
		otel:   otelslog.NewLogger(cfg.Grafana.ServiceName, otelslog.WithLoggerProvider(global.GetLoggerProvider())),
	}
}

// NewNopLogger discards everything.
func NewNopLogger() *LoggerClient {
	return &LoggerClient{
		stdout: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (l *LoggerClient) InfoWithContextf(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, slog.LevelInfo, nil, format, args...)
}

func (l *LoggerClient) DebugWithContextf(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, slog.LevelDebug, nil, format, args...)
}

func (l *LoggerClient) WarningWithContextf(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, slog.LevelWarn, nil, format, args...)
}

func (l *LoggerClient) ErrorWithContextf(ctx context.Context, err error, format string, args ...interface{}) {
	l.log(ctx, slog.LevelError, err, format, args...)
}

func (l *LoggerClient) log(ctx context.Context, level slog.Level, err error, format string, args ...interface{}) {
	if l == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	msg := fmt.Sprintf(format, args...)
	attrs := make([]any, 0, 6)
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		attrs = append(attrs, "trace_id", spanCtx.TraceID().String(), "span_id", spanCtx.SpanID().String())
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}

	l.stdout.Log(ctx, level, msg, attrs...)
	if l.otel != nil {
		l.otel.Log(ctx, level, msg, attrs...)
	}
}
