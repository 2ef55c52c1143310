package books

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcatalog/internal/types"
)

func pgQueries() queries {
	return queries{g: goqu.Dialect("postgres")}
}

func TestQueries_Select(t *testing.T) {
	q := pgQueries()

	sql, _, err := q.all()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "book" ORDER BY "id" ASC`, sql)

	sql, _, err = q.byId(7)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "book" WHERE ("id" = 7)`, sql)

	sql, _, err = q.maxId()
	require.NoError(t, err)
	assert.Equal(t, `SELECT COALESCE(MAX("id"), 0) FROM "book"`, sql)

	sql, _, err = q.delete(7)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "book" WHERE ("id" = 7)`, sql)
}

func TestQueries_InsertAndUpdate(t *testing.T) {
	q := pgQueries()
	rating := 4.5

	b := &types.Book{Id: 3, BookFields: types.BookFields{
		Title:           "O'Reilly Notes",
		Author:          "Someone",
		ISBN:            "9780000000003",
		PublicationDate: types.NewDate(2001, time.February, 3),
		Rating:          &rating,
	}}

	sql, _, err := q.insert(b)
	require.NoError(t, err)
	assert.Contains(t, sql, `INSERT INTO "book"`)
	assert.Contains(t, sql, `'O''Reilly Notes'`)
	assert.Contains(t, sql, `4.5`)
	assert.Contains(t, sql, `NULL`)

	sql, _, err = q.update(b)
	require.NoError(t, err)
	assert.Contains(t, sql, `UPDATE "book" SET`)
	assert.NotContains(t, sql, `"id"=3,`)
	assert.Contains(t, sql, `WHERE ("id" = 3)`)
}

func TestPgxBook_RoundTrip(t *testing.T) {
	price := 19.99
	b := &types.Book{Id: 5, BookFields: types.BookFields{
		Title:           "The Psychology of Money",
		Author:          "Morgan Housel",
		ISBN:            "9780857197689",
		PublicationDate: types.NewDate(2020, time.September, 8),
		Price:           &price,
		IsPremium:       true,
	}}

	row := fromCommon(b)
	got := row.intoCommon(context.Background(), slog.Default())
	assert.Equal(t, b, got)

	noDate := fromCommon(&types.Book{Id: 1})
	assert.Nil(t, noDate.PublicationDate)
}
