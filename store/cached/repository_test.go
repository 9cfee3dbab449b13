package cached

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudflow/criteria"
	"crudflow/crud"
	"crudflow/domain"
	"crudflow/store/memory"
)

type doc struct {
	ID   int64  `json:"id"`
	Tag  string `json:"tag"`
	Body string `json:"body"`
}

func (d doc) GetID() int64 { return d.ID }

// countingRepo 统计穿透到内层仓储的读次数
type countingRepo struct {
	*memory.Repository[int64, doc]
	reads int
}

func (c *countingRepo) Count(ctx context.Context, q memory.Query) (int64, error) {
	c.reads++
	return c.Repository.Count(ctx, q)
}

func (c *countingRepo) GetMany(ctx context.Context, q memory.Query) ([]doc, error) {
	c.reads++
	return c.Repository.GetMany(ctx, q)
}

func (c *countingRepo) GetOne(ctx context.Context, q memory.Query) (doc, bool, error) {
	c.reads++
	return c.Repository.GetOne(ctx, q)
}

func newCached(t *testing.T, ttl time.Duration) (*Repository[int64, doc, memory.Query], *countingRepo) {
	t.Helper()
	inner := &countingRepo{Repository: memory.New(memory.Options[int64, doc]{
		NextID:   memory.Sequence(),
		AssignID: func(d doc, id int64) doc { d.ID = id; return d },
	})}
	return New[int64, doc, memory.Query](inner, Config{Name: "docs", MaxSize: 16, TTL: ttl}), inner
}

func byTag(tag string) memory.Query {
	return memory.Query{Criteria: criteria.NewBuilder().Eq("tag", tag).Build()}
}

func TestCached_ReadsHitCache(t *testing.T) {
	ctx := context.Background()
	r, inner := newCached(t, time.Minute)
	_, err := r.SaveMany(ctx, []doc{{Tag: "a"}, {Tag: "a"}, {Tag: "b"}}, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		n, err := r.Count(ctx, byTag("a"))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	}
	assert.Equal(t, 1, inner.reads)

	_, found, err := r.GetOne(ctx, memory.Query{Criteria: criteria.ByID(int64(9))})
	require.NoError(t, err)
	assert.False(t, found)
	_, found, _ = r.GetOne(ctx, memory.Query{Criteria: criteria.ByID(int64(9))})
	assert.False(t, found)
	assert.Equal(t, 2, inner.reads)

	stats := r.Stats()
	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestCached_WritesInvalidate(t *testing.T) {
	ctx := context.Background()
	r, inner := newCached(t, time.Minute)
	_, err := r.Save(ctx, doc{Tag: "a"}, nil)
	require.NoError(t, err)

	items, err := r.GetMany(ctx, byTag("a"))
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = r.Save(ctx, doc{Tag: "a"}, nil)
	require.NoError(t, err)
	items, err = r.GetMany(ctx, byTag("a"))
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, inner.reads)

	ids, err := r.Delete(ctx, byTag("a"))
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	items, err = r.GetMany(ctx, byTag("a"))
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int64(3), r.Stats().Invalidations)
}

// gatedRepo 首次 Count 读完内层数据后阻塞，直到 release 关闭
type gatedRepo struct {
	*memory.Repository[int64, doc]
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRepo) Count(ctx context.Context, q memory.Query) (int64, error) {
	n, err := g.Repository.Count(ctx, q)
	if g.entered != nil {
		close(g.entered)
		g.entered = nil
		<-g.release
	}
	return n, err
}

func TestCached_ReadOverlappingWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &gatedRepo{
		Repository: memory.New(memory.Options[int64, doc]{
			NextID:   memory.Sequence(),
			AssignID: func(d doc, id int64) doc { d.ID = id; return d },
		}),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	entered := inner.entered
	r := New[int64, doc, memory.Query](inner, Config{Name: "docs", MaxSize: 16, TTL: time.Minute})

	stale := make(chan int64, 1)
	go func() {
		n, _ := r.Count(ctx, byTag("a"))
		stale <- n
	}()
	<-entered

	_, err := r.Save(ctx, doc{Tag: "a"}, nil)
	require.NoError(t, err)
	close(inner.release)
	assert.Equal(t, int64(0), <-stale)

	n, err := r.Count(ctx, byTag("a"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, r.Stats().Hits)
}

func TestCached_FirstWriteInvalidatesEmptyCache(t *testing.T) {
	ctx := context.Background()
	r, _ := newCached(t, time.Minute)
	_, err := r.UpdateMany(ctx, []doc{{ID: 1}}, nil)
	assert.Error(t, err)
	assert.Equal(t, int64(1), r.Stats().Invalidations)
}

func TestCached_ReturnedSlicesAreCopies(t *testing.T) {
	ctx := context.Background()
	r, _ := newCached(t, time.Minute)
	_, err := r.Save(ctx, doc{Tag: "a", Body: "orig"}, nil)
	require.NoError(t, err)

	first, err := r.GetMany(ctx, byTag("a"))
	require.NoError(t, err)
	first[0].Body = "mutated"

	second, err := r.GetMany(ctx, byTag("a"))
	require.NoError(t, err)
	assert.Equal(t, "orig", second[0].Body)
}

func TestCached_TTLExpires(t *testing.T) {
	ctx := context.Background()
	r, inner := newCached(t, 20*time.Millisecond)
	_, err := r.Count(ctx, byTag("a"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, _ = r.Count(ctx, byTag("a"))
		return inner.reads >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestCached_ServiceIntegration(t *testing.T) {
	ctx := context.Background()
	r, inner := newCached(t, time.Minute)
	svc := crud.New[int64, doc, *docDTO, memory.Query]("doc", r,
		crud.SimpleConverter(
			func(d doc) *docDTO { return &docDTO{ID: d.ID, Tag: d.Tag} },
			func(d *docDTO) doc { return doc{ID: d.ID, Tag: d.Tag} },
		), crud.Options[int64, *docDTO]{})

	saved, err := svc.Save(ctx, &docDTO{Tag: "x"}, nil)
	require.NoError(t, err)
	_, err = svc.GetOne(ctx, saved.ID, nil)
	require.NoError(t, err)
	_, err = svc.GetOne(ctx, saved.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.reads)

	_, err = svc.Delete(ctx, saved.ID, nil)
	require.NoError(t, err)
	_, err = svc.GetOne(ctx, saved.ID, nil)
	assert.Error(t, err)
	assert.Equal(t, 2, inner.reads)
}

type docDTO struct {
	ID  int64  `json:"id"`
	Tag string `json:"tag"`
}

func (d *docDTO) GetID() int64   { return d.ID }
func (d *docDTO) SetID(id int64) { d.ID = id }

var _ domain.IEntityDTO[int64] = (*docDTO)(nil)
