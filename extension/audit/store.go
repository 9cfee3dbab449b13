package audit

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	core "crudflow/data/db"
	"crudflow/data/db/sql"
	"crudflow/errors"
)

// MemoryStore 内存审计存储
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Append(ctx context.Context, records ...Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// Records 返回记录副本；entity 为空时返回全部
func (s *MemoryStore) Records(entity string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entity == "" {
		return slices.Clone(s.records)
	}
	var out []Record
	for _, r := range s.records {
		if r.Entity == entity {
			out = append(out, r)
		}
	}
	return out
}

// Schema 审计表结构（sqlite/postgres/mysql 通用）
const Schema = `CREATE TABLE IF NOT EXISTS audit_log (
	id VARCHAR(36) PRIMARY KEY,
	entity VARCHAR(64) NOT NULL,
	category VARCHAR(16) NOT NULL,
	operation VARCHAR(32) NOT NULL,
	user_id VARCHAR(64) NOT NULL DEFAULT '',
	tenant VARCHAR(64) NOT NULL DEFAULT '',
	ids TEXT NOT NULL,
	at TIMESTAMP NOT NULL
)`

// SQLStore 写入 audit_log 表
type SQLStore struct {
	db    core.IDatabase
	table string
}

// NewSQLStore table 为空时使用 audit_log
func NewSQLStore(db core.IDatabase, table string) *SQLStore {
	if table == "" {
		table = "audit_log"
	}
	return &SQLStore{db: db, table: table}
}

// Append 多条记录在一个事务内写入
func (s *SQLStore) Append(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	err := core.InTx(ctx, s.db, func(tx core.ITransaction) error {
		b := sql.New(tx).InsertInto(s.table).
			Columns("id", "entity", "category", "operation", "user_id", "tenant", "ids", "at")
		for _, r := range records {
			ids, err := json.Marshal(r.IDs)
			if err != nil {
				return err
			}
			b = b.Values(r.ID, r.Entity, string(r.Category), r.Operation, r.UserID, r.Tenant, string(ids), r.At)
		}
		_, err := b.Exec(ctx)
		return err
	})
	return errors.WrapDbError(ctx, err, "audit append")
}
