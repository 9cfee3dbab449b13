package middleware

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudflow/logging"
	"crudflow/messaging"
)

func passthrough(captured *messaging.IMessage) messaging.HandlerFunc {
	return func(_ context.Context, m messaging.IMessage) error {
		*captured = m
		return nil
	}
}

func TestTracing_InheritsFromContext(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-1")
	ctx = WithCausationID(ctx, "cmd-7")

	var got messaging.IMessage
	msg := messaging.NewMessage("m1", "note.save", nil)
	require.NoError(t, NewTracingMiddleware().Handle(ctx, msg, passthrough(&got)))

	assert.Equal(t, "req-1", got.GetMetadata()[KeyCorrelationID])
	assert.Equal(t, "cmd-7", got.GetMetadata()[KeyCausationID])
	assert.Equal(t, "req-1", msg.RequestID)
	assert.Equal(t, "req-1", CorrelationID(ctx))
}

func TestTracing_FallsBackToMessageID(t *testing.T) {
	var got messaging.IMessage
	msg := messaging.NewMessage("m1", "note.save", nil)
	msg.SetMetadata(KeyCorrelationID, "kept")
	require.NoError(t, NewTracingMiddleware().Handle(context.Background(), msg, passthrough(&got)))

	assert.Equal(t, "kept", got.GetMetadata()[KeyCorrelationID])
	assert.Equal(t, "m1", got.GetMetadata()[KeyCausationID])
	assert.Empty(t, msg.RequestID)
}

func TestLoggingMiddleware(t *testing.T) {
	rec := logging.NewRecorder()
	mw := NewLoggingMiddleware(rec)
	msg := messaging.NewMessage("m1", "note.save", nil)

	require.NoError(t, mw.Handle(context.Background(), msg, func(context.Context, messaging.IMessage) error { return nil }))
	boom := stdErrors.New("boom")
	assert.ErrorIs(t, mw.Handle(context.Background(), msg, func(context.Context, messaging.IMessage) error { return boom }), boom)

	entries := rec.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, logging.DebugLevel, entries[0].Level)
	assert.Equal(t, logging.WarnLevel, entries[1].Level)
	assert.Equal(t, "note.save", entries[1].Fields["message_type"])
	assert.Equal(t, "messaging", entries[1].Fields["component"])
}
