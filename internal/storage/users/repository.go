package users

import (
	"context"

	"bookcatalog/internal/types"
)

// Repository is the catalog of known identities. Lookups return nil without error when
// nothing matches; email and username match case-insensitively.
type Repository interface {
	GetById(ctx context.Context, id int64) (*types.User, error)
	GetByEmail(ctx context.Context, email string) (*types.User, error)
	GetByUsername(ctx context.Context, username string) (*types.User, error)
	MaxId(ctx context.Context) (int64, error)

	Insert(ctx context.Context, users ...*types.User) error
	// Update replaces the stored identity, purchases included. It reports false when the id is unknown.
	Update(ctx context.Context, user *types.User) (bool, error)
}
