package sqlstore

import (
	"context"

	core "crudflow/data/db"
	"crudflow/errors"
)

// rowStream 将结果集适配为 crud.Stream，耗尽或出错时释放连接
type rowStream[D any] struct {
	rows   core.IRows
	scan   func(core.IRow) (D, error)
	cur    D
	err    error
	closed bool
}

func (s *rowStream[D]) Next(ctx context.Context) bool {
	if s.closed {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		_ = s.Close()
		return false
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			s.err = errors.WrapDbError(ctx, err, "遍历结果失败")
		}
		_ = s.Close()
		return false
	}
	d, err := s.scan(s.rows)
	if err != nil {
		s.err = errors.WrapDbError(ctx, err, "读取行失败")
		_ = s.Close()
		return false
	}
	s.cur = d
	return true
}

func (s *rowStream[D]) Value() D { return s.cur }

func (s *rowStream[D]) Err() error { return s.err }

func (s *rowStream[D]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rows.Close()
}
