package books

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"bookcatalog/internal/types"
)

// Collection keeps books in memory in insertion order. It is lost on restart.
type Collection struct {
	mu    sync.RWMutex
	books []*types.Book
}

func NewCollection(initial ...*types.Book) *Collection {
	c := &Collection{books: make([]*types.Book, 0, len(initial))}
	for _, b := range initial {
		c.books = append(c.books, b.Clone())
	}
	return c
}

func (c *Collection) All(_ context.Context) ([]*types.Book, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*types.Book, 0, len(c.books))
	for _, b := range c.books {
		out = append(out, b.Clone())
	}
	return out, nil
}

func (c *Collection) GetById(_ context.Context, id int64) (*types.Book, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if ix := c.index(id); ix >= 0 {
		return c.books[ix].Clone(), nil
	}
	return nil, nil
}

func (c *Collection) MaxId(_ context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var maxId int64
	for _, b := range c.books {
		maxId = max(maxId, b.Id)
	}
	return maxId, nil
}

func (c *Collection) Insert(_ context.Context, books ...*types.Book) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range books {
		if c.index(b.Id) >= 0 {
			return fmt.Errorf("book %d already stored", b.Id)
		}
	}

	for _, b := range books {
		c.books = append(c.books, b.Clone())
	}
	return nil
}

func (c *Collection) Update(_ context.Context, book *types.Book) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ix := c.index(book.Id)
	if ix < 0 {
		return false, nil
	}

	c.books[ix] = book.Clone()
	return true, nil
}

func (c *Collection) Delete(_ context.Context, id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ix := c.index(id)
	if ix < 0 {
		return false, nil
	}

	c.books = slices.Delete(c.books, ix, ix+1)
	return true, nil
}

func (c *Collection) index(id int64) int {
	return slices.IndexFunc(c.books, func(b *types.Book) bool { return b.Id == id })
}
