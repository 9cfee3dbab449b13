package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldConstructors(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		wantKey string
		want    any
	}{
		{"String字段", String("name", "test"), "name", "test"},
		{"Int字段", Int("count", 123), "count", 123},
		{"Int64字段", Int64("id", 456), "id", int64(456)},
		{"Bool字段", Bool("active", true), "active", true},
		{"Duration字段", Duration("took", time.Second), "took", time.Second},
		{"Component字段", Component("crud"), "component", "crud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKey, tt.field.Key)
			assert.Equal(t, tt.want, tt.field.Value)
		})
	}

	errField := Error(errors.New("boom"))
	assert.Equal(t, "error", errField.Key)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"unknown": InfoLevel,
		"":        InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestSlogLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLoggerWithWriter("info", "json", &buf).
		WithFields(Component("notes"))

	log.Debug(context.Background(), "隐藏")
	log.Info(context.Background(), "保存成功", Int64("id", 7), Error(errors.New("x")))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "保存成功", rec["msg"])
	assert.Equal(t, "notes", rec["component"])
	assert.EqualValues(t, 7, rec["id"])
	assert.Equal(t, "x", rec["error"])
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	child := rec.WithFields(String("entity", "note"))

	child.Warn(context.Background(), "after hook failed", String("category", "save"))
	rec.Info(context.Background(), "plain")

	entries := rec.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, WarnLevel, entries[0].Level)
	assert.Equal(t, "note", entries[0].Fields["entity"])
	assert.Equal(t, "save", entries[0].Fields["category"])
	assert.NotContains(t, entries[1].Fields, "entity")
}

func TestGlobalLogger(t *testing.T) {
	original := GetLogger()
	defer SetLogger(original)

	rec := NewRecorder()
	SetLogger(rec)
	assert.Same(t, rec, GetLogger())

	ComponentLogger(nil, "hook").Info(context.Background(), "hi")
	require.Len(t, rec.Entries(), 1)
	assert.Equal(t, "hook", rec.Entries()[0].Fields["component"])

	SetLogger(nil)
	assert.IsType(t, &NoopLogger{}, GetLogger())
}

func TestStdLogger_WithFieldsDoesNotShare(t *testing.T) {
	base := NewStdLogger("[crud]")
	a := base.WithFields(String("a", "1")).(*StdLogger)
	b := base.WithFields(String("b", "2")).(*StdLogger)

	assert.Equal(t, "[crud] msg a=1", a.format("msg"))
	assert.Equal(t, "[crud] msg b=2 c=3", b.format("msg", String("c", "3")))
}
