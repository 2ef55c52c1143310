package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bookcatalog/internal/apperr"
	"bookcatalog/internal/catalog"
	"bookcatalog/internal/query"
	"bookcatalog/internal/response"
	"bookcatalog/internal/seed"
	"bookcatalog/internal/server"
	"bookcatalog/internal/session"
	"bookcatalog/internal/storage/books"
	"bookcatalog/internal/storage/state"
	"bookcatalog/internal/storage/users"
	"bookcatalog/internal/theme"
	"bookcatalog/internal/types"
)

func newClient(t *testing.T) *Client {
	t.Helper()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))

	seeded, err := seed.Users(bcrypt.MinCost)
	require.NoError(t, err)

	sr := state.NewMemoryRepository()
	cs := catalog.New(books.NewCollection(seed.Books()...), catalog.Delays{}, l)
	ss := session.New(users.NewDirectory(seeded...), sr, cs,
		session.Options{SecretKey: []byte("k"), BcryptCost: bcrypt.MinCost}, l)

	r := chi.NewRouter()
	r.Mount("/api", server.Handler(cs, ss, theme.New(sr, l), &response.Responder{}))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", srv.Client())
	require.NoError(t, err)
	return c
}

func TestNew_RejectsNonHTTP(t *testing.T) {
	_, err := New("ftp://example.org", nil)
	assert.Error(t, err)
}

func TestClient_BrowseAndEdit(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	bks, err := c.ListBooks(ctx, query.Spec{SortBy: query.SortPrice, Direction: query.Desc})
	require.NoError(t, err)
	require.Len(t, bks, 6)
	assert.Equal(t, "Clean Code", bks[0].Title)

	genres, err := c.Genres(ctx)
	require.NoError(t, err)
	assert.Contains(t, genres, "Finance")

	featured, err := c.Featured(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, featured, 1)

	_, err = c.GetBook(ctx, 42)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	fields := types.BookFields{
		Title: "Concurrency in Go", Author: "Katherine Cox-Buday", ISBN: "9781491941195",
		PublicationDate: types.NewDate(2017, time.July, 19), Genre: "Programming",
	}

	_, err = c.CreateBook(ctx, fields)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "/auth/login?returnUrl=%2Fapi%2Fbooks", apiErr.Redirect)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = c.Login(ctx, "author@example.com", "wrong")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	u, err := c.Login(ctx, "author@example.com", "password123")
	require.NoError(t, err)
	assert.True(t, u.IsAuthor)

	created, err := c.CreateBook(ctx, fields)
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.Id)
	assert.Equal(t, fields.PublicationDate, created.PublicationDate)

	fields.ISBN = "123"
	_, err = c.UpdateBook(ctx, created.Id, fields)
	require.True(t, errors.As(err, &apiErr))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, apiErr.Fields, "isbn")

	require.NoError(t, c.DeleteBook(ctx, created.Id))
	assert.ErrorIs(t, c.DeleteBook(ctx, created.Id), apperr.ErrNotFound)
}

func TestClient_SessionAndTheme(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	s, err := c.Session(ctx)
	require.NoError(t, err)
	assert.False(t, s.Authenticated)

	u, err := c.Register(ctx, types.Registration{
		Email: "sam@example.com", Username: "sam", Password: "secret1", FirstName: "Sam", LastName: "Lee",
	})
	require.NoError(t, err)

	ok, err := c.HasAccess(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	u, err = c.Purchase(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, u.PurchasedBooks)

	_, err = c.Purchase(ctx, 3)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	name := "Samuel"
	u, err = c.UpdateProfile(ctx, types.ProfileUpdate{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Samuel", u.FirstName)

	require.NoError(t, c.ChangePassword(ctx, "secret1", "secret2"))

	s, err = c.RefreshSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, s.User)
	assert.Equal(t, "Samuel", s.User.FirstName)

	got, err := c.GetUser(ctx, u.Id)
	require.NoError(t, err)
	assert.Equal(t, "sam", got.Username)

	require.NoError(t, c.Logout(ctx))
	s, err = c.Session(ctx)
	require.NoError(t, err)
	assert.False(t, s.Authenticated)
	assert.Nil(t, s.User)

	th, err := c.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ThemeDark, th)

	_, err = c.SetTheme(ctx, "sepia")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	th, err = c.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ThemeDark, th)
}
