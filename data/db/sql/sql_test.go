package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudflow/criteria"
	"crudflow/data/db/basic"
	"crudflow/errors"
)

func newSQL(driver string) ISql {
	return New(basic.Wrap(nil, driver))
}

func TestSelectBuild(t *testing.T) {
	q, args := newSQL("sqlite").Select("id", "title").From("notes").
		Where("owner = ?", "u1").
		OrderBy("title", false).
		OrderBy("id", true).
		Limit(10).Offset(20).
		Build()
	assert.Equal(t, `SELECT "id", "title" FROM "notes" WHERE owner = ? ORDER BY "title", "id" DESC LIMIT ? OFFSET ?`, q)
	assert.Equal(t, []any{"u1", 10, 20}, args)

	q, _ = newSQL("mysql").Select("COUNT(*)").From("notes").Build()
	assert.Equal(t, "SELECT COUNT(*) FROM `notes`", q)
}

func TestInsertBuild(t *testing.T) {
	q, args := newSQL("pgx").InsertInto("notes").Columns("id", "title").
		Values(1, "a").Values(2, "b").Returning("id").Build()
	assert.Equal(t, `INSERT INTO "notes" ("id", "title") VALUES (?, ?), (?, ?) RETURNING "id"`, q)
	assert.Equal(t, []any{1, "a", 2, "b"}, args)

	q, _ = newSQL("mysql").InsertInto("notes").Columns("id").Values(1).Returning("id").Build()
	assert.Equal(t, "INSERT INTO `notes` (`id`) VALUES (?)", q)

	assert.Panics(t, func() {
		newSQL("sqlite").InsertInto("notes").Columns("id").Values(1, 2).Build()
	})
}

func TestUpdateDeleteBuild(t *testing.T) {
	q, args := newSQL("sqlite").Update("notes").Set("title", "x").Set("done", true).
		Where(`"id" = ?`, 3).Build()
	assert.Equal(t, `UPDATE "notes" SET "title" = ?, "done" = ? WHERE "id" = ?`, q)
	assert.Equal(t, []any{"x", true, 3}, args)

	q, args = newSQL("sqlite").DeleteFrom("notes").Where(`"id" IN (?, ?)`, 1, 2).Build()
	assert.Equal(t, `DELETE FROM "notes" WHERE "id" IN (?, ?)`, q)
	assert.Equal(t, []any{1, 2}, args)
}

func TestUnsafeIdentifierPanics(t *testing.T) {
	assert.Panics(t, func() { newSQL("sqlite").Select("id").From("notes; drop").Build() })
	assert.Panics(t, func() { newSQL("sqlite").Select("id").From("notes").OrderBy("1=1", false).Build() })
}

func TestIsSafeIdentifier(t *testing.T) {
	for _, ok := range []string{"notes", "_x", "app.notes", "col_2"} {
		assert.True(t, IsSafeIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "2col", "a..b", "a b", "a;b", "a-b"} {
		assert.False(t, IsSafeIdentifier(bad), bad)
	}
}

func TestCompile(t *testing.T) {
	d := newSQL("sqlite").Dialect()
	columns := map[string]string{"id": "id", "title": "title", "done": "done", "owner": "owner_id"}
	resolve := func(f string) (string, bool) {
		c, ok := columns[f]
		return c, ok
	}

	c := criteria.NewBuilder().
		Eq("done", true).
		Like("title", "Go").
		In("id", []int64{1, 2}).
		NotIn("owner", []string{}).
		IsNull("owner", false).
		Gte("id", 1).
		Build()
	where, args, err := Compile(d, c, resolve)
	require.NoError(t, err)
	assert.Equal(t, `"done" = ? AND LOWER("title") LIKE ? ESCAPE '!' AND "id" IN (?, ?) AND "owner_id" IS NOT NULL AND "id" >= ?`, where)
	assert.Equal(t, []any{true, "%go%", int64(1), int64(2), 1}, args)

	_, args, err = Compile(d, criteria.NewBuilder().Like("title", "50%_Off!").Build(), resolve)
	require.NoError(t, err)
	assert.Equal(t, []any{"%50!%!_off!!%"}, args)

	where, args, err = Compile(d, criteria.ByIDs([]int64{}), resolve)
	require.NoError(t, err)
	assert.Equal(t, "1 = 0", where)
	assert.Empty(t, args)

	where, _, err = Compile(d, criteria.Empty(), resolve)
	require.NoError(t, err)
	assert.Empty(t, where)

	_, _, err = Compile(d, criteria.NewBuilder().Eq("secret", 1).Build(), resolve)
	assert.True(t, errors.IsBadRequest(err))
}
