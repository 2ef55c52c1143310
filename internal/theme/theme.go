// Package theme keeps the light/dark preference in the shared state repository.
package theme

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"bookcatalog/internal/apperr"
	"bookcatalog/internal/storage/state"
	"bookcatalog/internal/types"
)

type Store struct {
	state state.Repository
	l     *slog.Logger

	mu      sync.RWMutex
	current types.Theme
	subs    map[uint64]func(types.Theme)
	nextSub uint64
}

func New(sr state.Repository, l *slog.Logger) *Store {
	return &Store{
		state:   sr,
		l:       l,
		current: types.ThemeLight,
		subs:    make(map[uint64]func(types.Theme)),
	}
}

// Load reads the persisted theme. Unknown values fall back to light.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.state.Get(ctx, state.KeyTheme)
	if err != nil {
		return fmt.Errorf("loading theme: %w", err)
	}

	t := types.Theme(data)
	if !t.Valid() {
		if data != nil {
			s.l.WarnContext(ctx, "Ignoring unknown persisted theme", slog.String("theme", string(data)))
		}
		t = types.ThemeLight
	}

	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
	return nil
}

func (s *Store) Current() types.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) Set(ctx context.Context, t types.Theme) error {
	if !t.Valid() {
		return apperr.Invalid("theme", "must be light or dark")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.set(ctx, t)
}

// Toggle switches between light and dark and returns the new theme.
func (s *Store) Toggle(ctx context.Context) (types.Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := types.ThemeDark
	if s.current == types.ThemeDark {
		next = types.ThemeLight
	}

	return next, s.set(ctx, next)
}

func (s *Store) set(ctx context.Context, t types.Theme) error {
	if err := s.state.Set(ctx, state.KeyTheme, []byte(t)); err != nil {
		return fmt.Errorf("persisting theme: %w", err)
	}

	if s.current == t {
		return nil
	}

	s.current = t
	for _, fn := range s.subs {
		fn(t)
	}
	return nil
}

// Subscribe registers fn to receive the theme after every change. fn must not call back into the Store.
func (s *Store) Subscribe(fn func(types.Theme)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
