package books

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcatalog/internal/types"
)

func book(id int64, title string) *types.Book {
	return &types.Book{Id: id, BookFields: types.BookFields{Title: title}}
}

func TestCollection(t *testing.T) {
	ctx := context.Background()
	c := NewCollection(book(2, "two"), book(5, "five"))

	maxId, err := c.MaxId(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), maxId)

	require.NoError(t, c.Insert(ctx, book(6, "six")))
	require.Error(t, c.Insert(ctx, book(2, "dup")))

	ok, err := c.Update(ctx, book(5, "FIVE"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Update(ctx, book(9, "nine"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Delete(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	all, err := c.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "FIVE", all[0].Title)
	assert.Equal(t, "six", all[1].Title)

	missing, err := c.GetById(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCollection_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	rating := 4.0
	c := NewCollection(&types.Book{Id: 1, BookFields: types.BookFields{Title: "a", Rating: &rating}})

	got, err := c.GetById(ctx, 1)
	require.NoError(t, err)
	got.Title = "changed"
	*got.Rating = 1

	again, err := c.GetById(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Title)
	assert.Equal(t, 4.0, *again.Rating)

	empty := NewCollection()
	maxId, err := empty.MaxId(ctx)
	require.NoError(t, err)
	assert.Zero(t, maxId)
}
