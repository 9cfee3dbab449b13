package memory

import (
	"fmt"

	"crudflow/messaging"
)

// Subscribe 订阅消息处理器
//
// 支持多个处理器订阅同一消息类型，支持通配符 "*" 订阅所有消息
func (t *MemoryTransport) Subscribe(messageType string, handler messaging.IMessageHandler) error {
	if handler == nil {
		return fmt.Errorf("nil handler for message type %s", messageType)
	}
	t.handlers.Add(messageType, handler)
	return nil
}

// Unsubscribe 取消订阅消息处理器，处理器不存在时返回错误
func (t *MemoryTransport) Unsubscribe(messageType string, handler messaging.IMessageHandler) error {
	if found, _ := t.handlers.Remove(messageType, handler); !found {
		return fmt.Errorf("handler not found for message type %s", messageType)
	}
	return nil
}
