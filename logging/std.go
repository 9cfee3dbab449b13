package logging

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// StdLogger 标准库log实现
type StdLogger struct {
	prefix string
	fields []Field
}

// NewStdLogger 创建标准库Logger
func NewStdLogger(prefix string) *StdLogger {
	return &StdLogger{prefix: prefix}
}

func (l *StdLogger) format(msg string, fields ...Field) string {
	var sb strings.Builder
	if l.prefix != "" {
		sb.WriteString(l.prefix)
		sb.WriteByte(' ')
	}
	sb.WriteString(msg)
	writeFields(&sb, l.fields)
	writeFields(&sb, fields)
	return sb.String()
}

func writeFields(sb *strings.Builder, fields []Field) {
	for _, f := range fields {
		sb.WriteByte(' ')
		sb.WriteString(f.Key)
		sb.WriteByte('=')
		sb.WriteString(formatValue(f.Value))
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	default:
		return fmt.Sprint(val)
	}
}

func (l *StdLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	log.Println("[DEBUG]", l.format(msg, fields...))
}

func (l *StdLogger) Info(ctx context.Context, msg string, fields ...Field) {
	log.Println("[INFO]", l.format(msg, fields...))
}

func (l *StdLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	log.Println("[WARN]", l.format(msg, fields...))
}

func (l *StdLogger) Error(ctx context.Context, msg string, fields ...Field) {
	log.Println("[ERROR]", l.format(msg, fields...))
}

func (l *StdLogger) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &StdLogger{prefix: l.prefix, fields: merged}
}

// Entry 是 Recorder 捕获的一条日志
type Entry struct {
	Level   Level
	Message string
	Fields  map[string]any
}

// Recorder 在内存中记录日志，便于测试断言
type Recorder struct {
	mu      *sync.Mutex
	entries *[]Entry
	fields  []Field
}

// NewRecorder 创建内存日志记录器
func NewRecorder() *Recorder {
	return &Recorder{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (r *Recorder) record(level Level, msg string, fields []Field) {
	all := make(map[string]any, len(r.fields)+len(fields))
	for _, f := range r.fields {
		all[f.Key] = f.Value
	}
	for _, f := range fields {
		all[f.Key] = f.Value
	}
	r.mu.Lock()
	*r.entries = append(*r.entries, Entry{Level: level, Message: msg, Fields: all})
	r.mu.Unlock()
}

func (r *Recorder) Debug(_ context.Context, msg string, fields ...Field) {
	r.record(DebugLevel, msg, fields)
}
func (r *Recorder) Info(_ context.Context, msg string, fields ...Field) {
	r.record(InfoLevel, msg, fields)
}
func (r *Recorder) Warn(_ context.Context, msg string, fields ...Field) {
	r.record(WarnLevel, msg, fields)
}
func (r *Recorder) Error(_ context.Context, msg string, fields ...Field) {
	r.record(ErrorLevel, msg, fields)
}

func (r *Recorder) WithFields(fields ...Field) Logger {
	merged := append(append([]Field{}, r.fields...), fields...)
	return &Recorder{mu: r.mu, entries: r.entries, fields: merged}
}

// Entries 返回已记录日志的快照
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), *r.entries...)
}
