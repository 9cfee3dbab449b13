package messaging

import (
	"context"
	"slices"
	"sync"
)

// Wildcard 订阅所有消息类型
const Wildcard = "*"

// Transport 消息传输接口
type Transport interface {
	Publish(ctx context.Context, message IMessage) error
	PublishAll(ctx context.Context, messages []IMessage) error
	Subscribe(messageType string, handler IMessageHandler) error
	Unsubscribe(messageType string, handler IMessageHandler) error
	Start(ctx context.Context) error
	Close() error
	Stats() TransportStats
}

// TransportStats 传输层统计信息
type TransportStats struct {
	Running      bool     `json:"running"`
	HandlerCount int      `json:"handler_count"`
	MessageTypes []string `json:"message_types"`
	QueueSize    int      `json:"queue_size,omitempty"`
	QueueDepth   int      `json:"queue_depth,omitempty"`
	WorkerCount  int      `json:"worker_count,omitempty"`
	Published    int64    `json:"published"`
	Delivered    int64    `json:"delivered"`
	Failed       int64    `json:"failed"`
}

// HandlerSet 并发安全的订阅表，各传输实现复用
type HandlerSet struct {
	mu       sync.RWMutex
	handlers map[string][]IMessageHandler
}

// NewHandlerSet 创建订阅表
func NewHandlerSet() *HandlerSet {
	return &HandlerSet{handlers: make(map[string][]IMessageHandler)}
}

// Add 追加处理器，返回该类型是否为首次订阅
func (s *HandlerSet) Add(messageType string, handler IMessageHandler) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.handlers[messageType]) == 0
	s.handlers[messageType] = append(s.handlers[messageType], handler)
	return first
}

// Remove 移除处理器，返回是否找到以及该类型是否已无处理器
func (s *HandlerSet) Remove(messageType string, handler IMessageHandler) (found, empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handlers := s.handlers[messageType]
	for i, h := range handlers {
		if h == handler {
			handlers = slices.Delete(slices.Clone(handlers), i, i+1)
			if len(handlers) == 0 {
				delete(s.handlers, messageType)
				return true, true
			}
			s.handlers[messageType] = handlers
			return true, false
		}
	}
	return false, len(handlers) == 0
}

// Match 返回精确匹配在前、通配符在后的处理器副本
func (s *HandlerSet) Match(messageType string) []IMessageHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exact := s.handlers[messageType]
	var wildcard []IMessageHandler
	if messageType != Wildcard {
		wildcard = s.handlers[Wildcard]
	}
	out := make([]IMessageHandler, 0, len(exact)+len(wildcard))
	out = append(out, exact...)
	return append(out, wildcard...)
}

// Exact 只返回精确匹配的处理器副本
func (s *HandlerSet) Exact(messageType string) []IMessageHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]IMessageHandler(nil), s.handlers[messageType]...)
}

// Types 已订阅的消息类型（排序）
func (s *HandlerSet) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.handlers))
	for mt := range s.handlers {
		types = append(types, mt)
	}
	slices.Sort(types)
	return types
}

// Count 处理器总数
func (s *HandlerSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, hs := range s.handlers {
		n += len(hs)
	}
	return n
}
