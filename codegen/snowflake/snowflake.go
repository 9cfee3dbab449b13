// Package snowflake 雪花算法 int64 标识生成器，供 SQL 仓储在插入前分配主键。
package snowflake

import (
	"sync"
	"time"

	"crudflow/errors"
)

const (
	// 起始时间 2024-01-01 00:00:00 UTC（毫秒）
	epoch int64 = 1704067200000

	nodeBits     = 10
	sequenceBits = 12

	MaxNode     = -1 ^ (-1 << nodeBits)
	maxSequence = -1 ^ (-1 << sequenceBits)

	nodeShift      = sequenceBits
	timestampShift = sequenceBits + nodeBits
)

// Generator 并发安全的标识生成器
type Generator struct {
	mu       sync.Mutex
	node     int64
	sequence int64
	last     int64
	now      func() int64
}

// Option 生成器选项
type Option func(*Generator)

// WithClock 替换毫秒时钟
func WithClock(now func() int64) Option {
	return func(g *Generator) { g.now = now }
}

// New 创建节点号为 node 的生成器
func New(node int64, opts ...Option) (*Generator, error) {
	if node < 0 || node > MaxNode {
		return nil, errors.NewBadRequest("snowflake 节点号超出范围 [0, %d]: %d", MaxNode, node)
	}
	g := &Generator{node: node, last: -1, now: func() int64 { return time.Now().UnixMilli() }}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// NextID 生成下一个标识；时钟回拨时返回错误
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now < g.last {
		return 0, errors.Errorf(errors.ErrCodeInternal, "时钟回拨 %dms，拒绝生成标识", g.last-now)
	}
	if now == g.last {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			for now <= g.last {
				now = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.last = now

	return (now-epoch)<<timestampShift | g.node<<nodeShift | g.sequence, nil
}

// ID 标识的组成部分
type ID struct {
	Time     time.Time
	Node     int64
	Sequence int64
}

// Parse 拆解标识
func Parse(id int64) ID {
	return ID{
		Time:     time.UnixMilli((id >> timestampShift) + epoch).UTC(),
		Node:     (id >> nodeShift) & MaxNode,
		Sequence: id & maxSequence,
	}
}
