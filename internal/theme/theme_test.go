package theme

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcatalog/internal/apperr"
	"bookcatalog/internal/storage/state"
	"bookcatalog/internal/types"
)

func TestToggle_Persists(t *testing.T) {
	ctx := context.Background()
	repo := state.NewMemoryRepository()
	l := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := New(repo, l)
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, types.ThemeLight, s.Current())

	var seen []types.Theme
	s.Subscribe(func(t types.Theme) { seen = append(seen, t) })

	next, err := s.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ThemeDark, next)

	reloaded := New(repo, l)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, types.ThemeDark, reloaded.Current())

	require.NoError(t, s.Set(ctx, types.ThemeDark))
	next, err = s.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ThemeLight, next)

	assert.Equal(t, []types.Theme{types.ThemeDark, types.ThemeLight}, seen)
}

func TestSet_RejectsUnknown(t *testing.T) {
	ctx := context.Background()
	repo := state.NewMemoryRepository()
	s := New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.ErrorIs(t, s.Set(ctx, "sepia"), apperr.ErrValidation)

	require.NoError(t, repo.Set(ctx, state.KeyTheme, []byte("sepia")))
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, types.ThemeLight, s.Current())
}
