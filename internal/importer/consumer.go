package importer

import (
	"context"
	"fmt"
	"log/slog"

	"bookcatalog/internal/types"
)

// LoggerConsumer only reports what it receives; useful for a dry run over a feed.
type LoggerConsumer struct {
	Logger *slog.Logger
}

func (c *LoggerConsumer) ConsumeBooks(ctx context.Context, books []types.BookFields) error {
	for _, b := range books {
		genre := b.Genre
		if genre == "" {
			genre = "no genre"
		}
		c.Logger.InfoContext(ctx, "Consumed book "+b.ISBN+" ("+b.Title+") by "+b.Author+", "+genre)
	}
	return nil
}

// Catalog is the part of the book store an import writes to.
type Catalog interface {
	Import(ctx context.Context, fields ...types.BookFields) ([]*types.Book, error)
}

// StoringConsumer hands every page to the catalog and counts the books it accepted.
type StoringConsumer struct {
	Logger  *slog.Logger
	Catalog Catalog

	Stored int
}

func (c *StoringConsumer) ConsumeBooks(ctx context.Context, books []types.BookFields) error {
	stored, err := c.Catalog.Import(ctx, books...)
	if err != nil {
		return fmt.Errorf("storing %d books: %w", len(books), err)
	}

	c.Stored += len(stored)
	if skipped := len(books) - len(stored); skipped > 0 {
		c.Logger.WarnContext(ctx, fmt.Sprintf("Catalog rejected %d of %d books", skipped, len(books)))
	}
	return nil
}
