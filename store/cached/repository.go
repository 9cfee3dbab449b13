// Package cached 为任意 crud.IRepository 增加读缓存。
//
// 读操作按查询对象的 CacheKey 缓存，任何写操作清空整个缓存。
// 读取期间若发生写操作，该次读取结果不回填。流式读取不缓存。
package cached

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"crudflow/crud"
	"crudflow/domain"
	"crudflow/logging"
)

// Keyer 可生成缓存键的查询对象
type Keyer interface {
	CacheKey() string
}

// Config 缓存配置
type Config struct {
	Name    string
	MaxSize int
	TTL     time.Duration
	Logger  logging.Logger
}

// Stats 缓存统计
type Stats struct {
	Hits          int64
	Misses        int64
	Invalidations int64
	Size          int
}

type page[D any] struct {
	items []D
	total int64
}

type one[D any] struct {
	item  D
	found bool
}

// Repository 缓存装饰器
type Repository[ID comparable, D domain.IObject[ID], Q Keyer] struct {
	crud.IRepository[ID, D, Q]
	cache  *expirable.LRU[string, any]
	logger logging.Logger

	// mu 串行化回填与清空；generation 每次写后递增
	mu         sync.Mutex
	generation atomic.Uint64

	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
}

var _ crud.IRepository[int64, domain.IObject[int64], keyString] = (*Repository[int64, domain.IObject[int64], keyString])(nil)

type keyString string

func (k keyString) CacheKey() string { return string(k) }

// New 包装 inner
func New[ID comparable, D domain.IObject[ID], Q Keyer](inner crud.IRepository[ID, D, Q], cfg Config) *Repository[ID, D, Q] {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1024
	}
	return &Repository[ID, D, Q]{
		IRepository: inner,
		cache:       expirable.NewLRU[string, any](cfg.MaxSize, nil, cfg.TTL),
		logger:      logging.ComponentLogger(cfg.Logger, "cache").WithFields(logging.String("cache", cfg.Name)),
	}
}

// Stats 返回当前统计
func (r *Repository[ID, D, Q]) Stats() Stats {
	return Stats{
		Hits:          r.hits.Load(),
		Misses:        r.misses.Load(),
		Invalidations: r.invalidations.Load(),
		Size:          r.cache.Len(),
	}
}

func (r *Repository[ID, D, Q]) lookup(key string) (any, bool) {
	v, ok := r.cache.Get(key)
	if ok {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
	return v, ok
}

// fill 仅当读取开始后没有写操作时回填
func (r *Repository[ID, D, Q]) fill(key string, gen uint64, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation.Load() == gen {
		r.cache.Add(key, v)
	}
}

func (r *Repository[ID, D, Q]) Count(ctx context.Context, q Q) (int64, error) {
	key := "count:" + q.CacheKey()
	if v, ok := r.lookup(key); ok {
		return v.(int64), nil
	}
	gen := r.generation.Load()
	n, err := r.IRepository.Count(ctx, q)
	if err != nil {
		return 0, err
	}
	r.fill(key, gen, n)
	return n, nil
}

func (r *Repository[ID, D, Q]) GetOne(ctx context.Context, q Q) (D, bool, error) {
	key := "one:" + q.CacheKey()
	if v, ok := r.lookup(key); ok {
		hit := v.(one[D])
		return hit.item, hit.found, nil
	}
	gen := r.generation.Load()
	d, found, err := r.IRepository.GetOne(ctx, q)
	if err != nil {
		return d, false, err
	}
	r.fill(key, gen, one[D]{item: d, found: found})
	return d, found, nil
}

func (r *Repository[ID, D, Q]) GetMany(ctx context.Context, q Q) ([]D, error) {
	key := "many:" + q.CacheKey()
	if v, ok := r.lookup(key); ok {
		return append([]D(nil), v.([]D)...), nil
	}
	gen := r.generation.Load()
	items, err := r.IRepository.GetMany(ctx, q)
	if err != nil {
		return nil, err
	}
	r.fill(key, gen, append([]D(nil), items...))
	return items, nil
}

func (r *Repository[ID, D, Q]) GetPage(ctx context.Context, q Q) ([]D, int64, error) {
	key := "page:" + q.CacheKey()
	if v, ok := r.lookup(key); ok {
		hit := v.(page[D])
		return append([]D(nil), hit.items...), hit.total, nil
	}
	gen := r.generation.Load()
	items, total, err := r.IRepository.GetPage(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	r.fill(key, gen, page[D]{items: append([]D(nil), items...), total: total})
	return items, total, nil
}

func (r *Repository[ID, D, Q]) Save(ctx context.Context, d D, user *domain.User) (D, error) {
	defer r.invalidate(ctx, "save")
	return r.IRepository.Save(ctx, d, user)
}

func (r *Repository[ID, D, Q]) SaveMany(ctx context.Context, ds []D, user *domain.User) ([]D, error) {
	defer r.invalidate(ctx, "saveMany")
	return r.IRepository.SaveMany(ctx, ds, user)
}

func (r *Repository[ID, D, Q]) Update(ctx context.Context, d D, user *domain.User) (D, error) {
	defer r.invalidate(ctx, "update")
	return r.IRepository.Update(ctx, d, user)
}

func (r *Repository[ID, D, Q]) UpdateMany(ctx context.Context, ds []D, user *domain.User) ([]D, error) {
	defer r.invalidate(ctx, "updateMany")
	return r.IRepository.UpdateMany(ctx, ds, user)
}

func (r *Repository[ID, D, Q]) Delete(ctx context.Context, q Q) ([]ID, error) {
	defer r.invalidate(ctx, "delete")
	return r.IRepository.Delete(ctx, q)
}

// invalidate 写操作后清空缓存，失败的写也清空
func (r *Repository[ID, D, Q]) invalidate(ctx context.Context, op string) {
	r.mu.Lock()
	r.generation.Add(1)
	r.cache.Purge()
	r.mu.Unlock()
	r.invalidations.Add(1)
	r.logger.Debug(ctx, "缓存已清空", logging.String("operation", op))
}
