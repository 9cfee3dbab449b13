package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// SlogLogger 基于 log/slog 的 Logger 实现
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger 按级别与格式（json | text）创建 Logger，输出到 stdout
func NewSlogLogger(level, format string) *SlogLogger {
	return NewSlogLoggerWithWriter(level, format, os.Stdout)
}

// NewSlogLoggerWithWriter 创建写入指定 writer 的 Logger
func NewSlogLoggerWithWriter(level, format string, w io.Writer) *SlogLogger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     slogLevel(lvl),
		AddSource: lvl == DebugLevel,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return &SlogLogger{l: slog.New(handler)}
}

// FromSlog 包装已有的 *slog.Logger
func FromSlog(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

// ParseLevel 解析级别字符串，无法识别时返回 InfoLevel
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func slogLevel(l Level) slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func toAttrs(fields []Field) []any {
	attrs := make([]any, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			attrs = append(attrs, slog.String(f.Key, err.Error()))
			continue
		}
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	s.l.DebugContext(ctx, msg, toAttrs(fields)...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, fields ...Field) {
	s.l.InfoContext(ctx, msg, toAttrs(fields)...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	s.l.WarnContext(ctx, msg, toAttrs(fields)...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, fields ...Field) {
	s.l.ErrorContext(ctx, msg, toAttrs(fields)...)
}

func (s *SlogLogger) WithFields(fields ...Field) Logger {
	return &SlogLogger{l: s.l.With(toAttrs(fields)...)}
}

// Slog 返回底层 *slog.Logger
func (s *SlogLogger) Slog() *slog.Logger { return s.l }
