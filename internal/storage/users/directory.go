package users

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"bookcatalog/internal/types"
)

// Directory keeps identities in memory.
type Directory struct {
	mu    sync.RWMutex
	users []*types.User
}

func NewDirectory(initial ...*types.User) *Directory {
	d := &Directory{users: make([]*types.User, 0, len(initial))}
	for _, u := range initial {
		d.users = append(d.users, u.Clone())
	}
	return d
}

func (d *Directory) GetById(_ context.Context, id int64) (*types.User, error) {
	return d.find(func(u *types.User) bool { return u.Id == id }), nil
}

func (d *Directory) GetByEmail(_ context.Context, email string) (*types.User, error) {
	return d.find(func(u *types.User) bool { return strings.EqualFold(u.Email, email) }), nil
}

func (d *Directory) GetByUsername(_ context.Context, username string) (*types.User, error) {
	return d.find(func(u *types.User) bool { return strings.EqualFold(u.Username, username) }), nil
}

func (d *Directory) MaxId(_ context.Context) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var maxId int64
	for _, u := range d.users {
		maxId = max(maxId, u.Id)
	}
	return maxId, nil
}

func (d *Directory) Insert(_ context.Context, users ...*types.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range users {
		if d.index(u.Id) >= 0 {
			return fmt.Errorf("user %d already stored", u.Id)
		}
	}

	for _, u := range users {
		d.users = append(d.users, u.Clone())
	}
	return nil
}

func (d *Directory) Update(_ context.Context, user *types.User) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ix := d.index(user.Id)
	if ix < 0 {
		return false, nil
	}

	d.users[ix] = user.Clone()
	return true, nil
}

func (d *Directory) find(match func(u *types.User) bool) *types.User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if ix := slices.IndexFunc(d.users, match); ix >= 0 {
		return d.users[ix].Clone()
	}
	return nil
}

func (d *Directory) index(id int64) int {
	return slices.IndexFunc(d.users, func(u *types.User) bool { return u.Id == id })
}
