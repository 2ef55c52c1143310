package books

import (
	"context"

	"bookcatalog/internal/types"
)

// Repository is the persistence behind the catalog. Writes are serialized by the caller.
type Repository interface {
	// All returns every book in store order.
	All(ctx context.Context) ([]*types.Book, error)
	// GetById returns nil without error when the book does not exist.
	GetById(ctx context.Context, id int64) (*types.Book, error)
	MaxId(ctx context.Context) (int64, error)

	Insert(ctx context.Context, books ...*types.Book) error
	// Update reports false when there is no book with that id.
	Update(ctx context.Context, book *types.Book) (bool, error)
	// Delete reports false when there is no book with that id.
	Delete(ctx context.Context, id int64) (bool, error)
}
