package auth

import (
	"crudflow/crud"
	"crudflow/store/memory"
)

type item struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (i *item) GetID() int64   { return i.ID }
func (i *item) SetID(id int64) { i.ID = id }

func newGuardedService() *crud.Service[int64, *item, *item, memory.Query] {
	repo := memory.New(memory.Options[int64, *item]{
		NextID:   memory.Sequence(),
		AssignID: func(i *item, id int64) *item { i.ID = id; return i },
	})
	return crud.New[int64, *item, *item, memory.Query]("item", repo, crud.Identity[*item](), crud.Options[int64, *item]{
		Interceptors: []crud.Interceptor{RequireScopes(nil)},
	})
}
