package crud_test

import (
	"context"
	stdErrors "errors"
	"sync"

	"crudflow/criteria"
	"crudflow/crud"
	"crudflow/domain"
	"crudflow/hook"
	"crudflow/store/memory"
)

// Note 领域对象
type Note struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Owner string `json:"owner"`
	Done  bool   `json:"done"`
}

func (n Note) GetID() int64 { return n.ID }

// NoteDTO 传输对象
type NoteDTO struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Owner string `json:"owner,omitempty"`
	Done  bool   `json:"done"`
}

func (n *NoteDTO) GetID() int64   { return n.ID }
func (n *NoteDTO) SetID(id int64) { n.ID = id }

func (n *NoteDTO) Validate() error {
	if n.Title == "" {
		return stdErrors.New("title is required")
	}
	return nil
}

var noteConverter = crud.SimpleConverter(
	func(n Note) *NoteDTO { return &NoteDTO{ID: n.ID, Title: n.Title, Owner: n.Owner, Done: n.Done} },
	func(d *NoteDTO) Note { return Note{ID: d.ID, Title: d.Title, Owner: d.Owner, Done: d.Done} },
)

// spyRepo 统计仓储调用次数
type spyRepo struct {
	*memory.Repository[int64, Note]
	mu    sync.Mutex
	calls map[string]int
}

func newSpyRepo() *spyRepo {
	return &spyRepo{
		Repository: memory.New(memory.Options[int64, Note]{
			NextID:   memory.Sequence(),
			AssignID: func(n Note, id int64) Note { n.ID = id; return n },
		}),
		calls: map[string]int{},
	}
}

func (s *spyRepo) hit(name string) {
	s.mu.Lock()
	s.calls[name]++
	s.mu.Unlock()
}

func (s *spyRepo) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *spyRepo) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *spyRepo) reset() {
	s.mu.Lock()
	s.calls = map[string]int{}
	s.mu.Unlock()
}

func (s *spyRepo) GenerateQuery(ctx context.Context, user *domain.User) (memory.Query, error) {
	s.hit("GenerateQuery")
	return s.Repository.GenerateQuery(ctx, user)
}

func (s *spyRepo) GeneratePageQuery(ctx context.Context, page domain.PageRequest, user *domain.User) (memory.Query, error) {
	s.hit("GeneratePageQuery")
	return s.Repository.GeneratePageQuery(ctx, page, user)
}

func (s *spyRepo) ApplyCriteria(ctx context.Context, q memory.Query, c criteria.Criteria, user *domain.User) (memory.Query, error) {
	s.hit("ApplyCriteria")
	return s.Repository.ApplyCriteria(ctx, q, c, user)
}

func (s *spyRepo) Count(ctx context.Context, q memory.Query) (int64, error) {
	s.hit("Count")
	return s.Repository.Count(ctx, q)
}

func (s *spyRepo) GetOne(ctx context.Context, q memory.Query) (Note, bool, error) {
	s.hit("GetOne")
	return s.Repository.GetOne(ctx, q)
}

func (s *spyRepo) GetMany(ctx context.Context, q memory.Query) ([]Note, error) {
	s.hit("GetMany")
	return s.Repository.GetMany(ctx, q)
}

func (s *spyRepo) GetPage(ctx context.Context, q memory.Query) ([]Note, int64, error) {
	s.hit("GetPage")
	return s.Repository.GetPage(ctx, q)
}

func (s *spyRepo) GetStream(ctx context.Context, q memory.Query) (crud.Stream[Note], error) {
	s.hit("GetStream")
	return s.Repository.GetStream(ctx, q)
}

func (s *spyRepo) Save(ctx context.Context, n Note, user *domain.User) (Note, error) {
	s.hit("Save")
	return s.Repository.Save(ctx, n, user)
}

func (s *spyRepo) SaveMany(ctx context.Context, ns []Note, user *domain.User) ([]Note, error) {
	s.hit("SaveMany")
	return s.Repository.SaveMany(ctx, ns, user)
}

func (s *spyRepo) Update(ctx context.Context, n Note, user *domain.User) (Note, error) {
	s.hit("Update")
	return s.Repository.Update(ctx, n, user)
}

func (s *spyRepo) UpdateMany(ctx context.Context, ns []Note, user *domain.User) ([]Note, error) {
	s.hit("UpdateMany")
	return s.Repository.UpdateMany(ctx, ns, user)
}

func (s *spyRepo) Delete(ctx context.Context, q memory.Query) ([]int64, error) {
	s.hit("Delete")
	return s.Repository.Delete(ctx, q)
}

// vanishingRepo 在批量更新前删除最后一个目标，模拟并发删除
type vanishingRepo struct {
	*spyRepo
}

func (v vanishingRepo) UpdateMany(ctx context.Context, ns []Note, user *domain.User) ([]Note, error) {
	if len(ns) > 0 {
		_, _ = v.Repository.Delete(ctx, memory.Query{Criteria: criteria.ByID(ns[len(ns)-1].ID)})
	}
	return v.spyRepo.UpdateMany(ctx, ns, user)
}

type noteService = crud.Service[int64, Note, *NoteDTO, memory.Query]

func newNoteService(repo *spyRepo, opts crud.Options[int64, *NoteDTO]) *noteService {
	return crud.New[int64, Note, *NoteDTO, memory.Query]("note", repo, noteConverter, opts)
}

// failingHook 在指定阶段与类别上失败
func failingHook(phase hook.Phase, cat hook.Category, err error) hook.IExtension {
	fn := func(_ context.Context, ev *hook.Event) error {
		if ev.Category == cat && ev.Phase == phase {
			return err
		}
		return nil
	}
	return hook.Funcs{ExtName: "failing", BeforeFn: fn, AfterFn: fn}
}

func seed(ctx context.Context, svc *noteService, titles ...string) []*NoteDTO {
	out := make([]*NoteDTO, 0, len(titles))
	for _, t := range titles {
		dto, err := svc.Save(ctx, &NoteDTO{Title: t, Owner: "u1"}, nil)
		if err != nil {
			panic(err)
		}
		out = append(out, dto)
	}
	return out
}
