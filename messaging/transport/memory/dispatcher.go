package memory

import (
	"context"

	"crudflow/logging"
	"crudflow/messaging"
)

// dispatch 分发消息到精确匹配与通配符处理器。
//
// 异步分发下处理器错误不会传播给发布者，只记录日志与失败计数。
func (t *MemoryTransport) dispatch(ctx context.Context, message messaging.IMessage) {
	handlers := t.handlers.Match(message.GetType())
	if len(handlers) == 0 {
		return
	}

	failed := messaging.Dispatch(ctx, handlers, message, func(h messaging.IMessageHandler, err error) {
		t.logger.Warn(ctx, "message handler failed",
			logging.String("message_type", message.GetType()),
			logging.String("message_id", message.GetID()),
			logging.String("handler", h.Type()),
			logging.Error(err))
	})
	t.delivered.Add(int64(len(handlers) - failed))
	t.failed.Add(int64(failed))
}
