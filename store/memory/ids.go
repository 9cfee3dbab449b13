package memory

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Sequence 返回从 1 开始递增的 int64 标识生成器
func Sequence() func() int64 {
	var n atomic.Int64
	return func() int64 { return n.Add(1) }
}

// UUIDs 返回随机 UUID 字符串生成器
func UUIDs() func() string {
	return func() string { return uuid.NewString() }
}
