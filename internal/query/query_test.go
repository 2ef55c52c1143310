package query

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcatalog/internal/apperr"
	"bookcatalog/internal/types"
)

func ptr[T any](v T) *T { return &v }

func ids(books []*types.Book) []int64 {
	out := make([]int64, 0, len(books))
	for _, b := range books {
		out = append(out, b.Id)
	}
	return out
}

func fixture() []*types.Book {
	return []*types.Book{
		{Id: 1, BookFields: types.BookFields{Title: "Alpha", Author: "Zed", ISBN: "9780000000001",
			Genre: "Classic", Rating: ptr(4.0), Price: ptr(10.0), Pages: ptr(300),
			PublicationDate: types.NewDate(1999, time.May, 1)}},
		{Id: 2, BookFields: types.BookFields{Title: "beta", Author: "Young", ISBN: "9780000000002",
			Genre: "Programming", Rating: ptr(4.0),
			PublicationDate: types.NewDate(1950, time.January, 10)}},
		{Id: 3, BookFields: types.BookFields{Title: "Gamma", Author: "Xavier", ISBN: "9780000000003",
			Genre: "Classic", Rating: ptr(3.0), Price: ptr(5.5), Pages: ptr(120),
			PublicationDate: types.NewDate(2020, time.March, 3)}},
	}
}

func TestApply_NoSpecKeepsOrder(t *testing.T) {
	books := fixture()
	assert.Equal(t, []int64{1, 2, 3}, ids(Apply(books, Spec{})))
	assert.Equal(t, []int64{1, 2, 3}, ids(Apply(books, Spec{Search: "   "})))
}

func TestApply_RatingTiesAreStable(t *testing.T) {
	books := fixture()
	assert.Equal(t, []int64{1, 2, 3}, ids(Apply(books, Spec{SortBy: SortRating, Direction: Desc})))
	assert.Equal(t, []int64{3, 1, 2}, ids(Apply(books, Spec{SortBy: SortRating, Direction: Asc})))
}

func TestApply_Search(t *testing.T) {
	books := fixture()

	tests := []struct {
		term string
		want []int64
	}{
		{"ALP", []int64{1}},
		{"  Beta ", []int64{2}},
		{"xavier", []int64{3}},
		{"0000000002", []int64{2}},
		{"classic", []int64{1, 3}},
		{"nothing like this", []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(books, Spec{Search: tt.term})))
		})
	}
}

func TestApply_GenreIsExact(t *testing.T) {
	books := fixture()
	assert.Equal(t, []int64{1, 3}, ids(Apply(books, Spec{Genre: "Classic"})))
	assert.Empty(t, Apply(books, Spec{Genre: "classic"}))
	assert.Equal(t, []int64{3}, ids(Apply(books, Spec{Genre: "Classic", Search: "gam"})))
}

func TestApply_Sorts(t *testing.T) {
	books := fixture()

	tests := []struct {
		name string
		spec Spec
		want []int64
	}{
		{"title ignores case", Spec{SortBy: SortTitle}, []int64{1, 2, 3}},
		{"title desc", Spec{SortBy: SortTitle, Direction: Desc}, []int64{3, 2, 1}},
		{"author", Spec{SortBy: SortAuthor}, []int64{3, 2, 1}},
		{"date", Spec{SortBy: SortPublicationDate}, []int64{2, 1, 3}},
		{"price missing is zero", Spec{SortBy: SortPrice}, []int64{2, 3, 1}},
		{"pages desc", Spec{SortBy: SortPages, Direction: Desc}, []int64{1, 3, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(books, tt.spec)))
		})
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	books := fixture()
	before := ids(books)

	_ = Apply(books, Spec{SortBy: SortTitle, Direction: Desc})
	assert.Equal(t, before, ids(books))
}

func TestParse(t *testing.T) {
	k, err := ParseSortKey("pageCount")
	require.NoError(t, err)
	assert.Equal(t, SortPages, k)

	_, err = ParseSortKey("isbn")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	d, err := ParseDirection("DESC")
	require.NoError(t, err)
	assert.Equal(t, Desc, d)

	d, err = ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Asc, d)

	_, err = Spec{Direction: "sideways"}.Normalize()
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	got, err := Spec{Search: " Go ", SortBy: " pageCount ", Direction: " DESC "}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, Spec{Search: " Go ", SortBy: SortPages, Direction: Desc}, got)

	got, err = Spec{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, Spec{SortBy: SortNone, Direction: Asc}, got)
}
