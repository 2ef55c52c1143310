// Package catalog is the authoritative owner of book records. Reads and writes go through
// Service, which checks the requester's capabilities, validates input, serializes mutations
// and publishes the new collection to observers after each committed change.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"bookcatalog/internal/apperr"
	"bookcatalog/internal/policy"
	"bookcatalog/internal/query"
	"bookcatalog/internal/storage/books"
	"bookcatalog/internal/types"
	"bookcatalog/internal/validator"
)

const DefaultFeaturedLimit = 6

// Buyer is a session able to record purchases for its bound identity.
type Buyer interface {
	policy.Session
	RecordPurchase(ctx context.Context, bookId int64) (*types.User, error)
}

// Delays simulate the round trip of reads, mutations and purchases.
type Delays struct {
	Read     time.Duration
	Mutate   time.Duration
	Purchase time.Duration
}

// ScaledDelays keeps the proportions of the default delays (reads 300ms, mutations and
// purchases 500ms) with reads taking base.
func ScaledDelays(base time.Duration) Delays {
	return Delays{
		Read:     base,
		Mutate:   base * 5 / 3,
		Purchase: base * 5 / 3,
	}
}

type Service struct {
	repo   books.Repository
	delays Delays
	l      *slog.Logger

	mu      sync.Mutex
	version atomic.Uint64

	subMu   sync.RWMutex
	subs    map[uint64]func([]*types.Book)
	nextSub uint64
}

func New(repo books.Repository, delays Delays, l *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		delays: delays,
		l:      l,
		subs:   make(map[uint64]func([]*types.Book)),
	}
}

// Subscribe registers fn to receive the whole collection after every committed mutation, in
// commit order. fn runs synchronously while the mutation holds the store: it may read but
// must not mutate.
func (s *Service) Subscribe(fn func([]*types.Book)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Version grows by one with every committed mutation.
func (s *Service) Version() uint64 {
	return s.version.Load()
}

// List returns a snapshot of the collection, filtered and ordered by spec when one is given.
func (s *Service) List(ctx context.Context, spec *query.Spec) ([]*types.Book, error) {
	if spec != nil {
		n, err := spec.Normalize()
		if err != nil {
			return nil, err
		}
		spec = &n
	}

	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	if spec != nil {
		all = query.Apply(all, *spec)
	}

	return all, wait(ctx, s.delays.Read)
}

func (s *Service) Get(ctx context.Context, id int64) (*types.Book, error) {
	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return b, wait(ctx, s.delays.Read)
}

func (s *Service) get(ctx context.Context, id int64) (*types.Book, error) {
	b, err := s.repo.GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("book %d: %w", id, apperr.ErrNotFound)
	}
	return b, nil
}

// Featured returns up to limit featured books in store order.
func (s *Service) Featured(ctx context.Context, limit int) ([]*types.Book, error) {
	if limit <= 0 {
		limit = DefaultFeaturedLimit
	}

	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*types.Book, 0, limit)
	for _, b := range all {
		if len(out) == limit {
			break
		}
		if b.IsFeatured {
			out = append(out, b)
		}
	}

	return out, wait(ctx, s.delays.Read)
}

// Genres lists the distinct genres in the order they first appear.
func (s *Service) Genres(ctx context.Context) ([]string, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, b := range all {
		if b.Genre == "" {
			continue
		}
		if _, ok := seen[b.Genre]; !ok {
			seen[b.Genre] = struct{}{}
			out = append(out, b.Genre)
		}
	}

	return out, wait(ctx, s.delays.Read)
}

func (s *Service) IsPremium(ctx context.Context, id int64) (bool, error) {
	b, err := s.get(ctx, id)
	if err != nil {
		return false, err
	}
	return b.IsPremium, nil
}

// Validate checks fields the way Create and Update do.
func Validate(fields types.BookFields) error {
	v := validator.New()
	v.Struct(fields)
	v.Check(!fields.PublicationDate.IsZero(), "publicationDate", "must be provided")
	if fields.IsPremium {
		v.Check(fields.PriceOrZero() > 0, "price", "must be greater than zero for premium books")
	}
	return v.Err()
}

func authorize(ctx context.Context, requester policy.Session) error {
	if o := policy.RequireAuthor(ctx, requester, ""); !o.Allowed {
		return fmt.Errorf("only authors can change books: %w", apperr.ErrUnauthorized)
	}
	return nil
}

// Create stores a new book with an identifier one above the current maximum.
func (s *Service) Create(ctx context.Context, fields types.BookFields, requester policy.Session) (*types.Book, error) {
	if err := authorize(ctx, requester); err != nil {
		return nil, err
	}
	if err := Validate(fields); err != nil {
		return nil, err
	}

	s.mu.Lock()
	book, err := s.create(ctx, fields)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	s.l.InfoContext(ctx, "Book created", slog.Int64("book_id", book.Id))
	return book, wait(ctx, s.delays.Mutate)
}

func (s *Service) create(ctx context.Context, fields types.BookFields) (*types.Book, error) {
	maxId, err := s.repo.MaxId(ctx)
	if err != nil {
		return nil, err
	}

	book := &types.Book{Id: maxId + 1, BookFields: fields.Clone()}
	if err := s.repo.Insert(ctx, book); err != nil {
		return nil, err
	}

	s.publish(ctx)
	return book.Clone(), nil
}

// Update replaces every field of the book except its identifier.
func (s *Service) Update(ctx context.Context, id int64, fields types.BookFields, requester policy.Session) (*types.Book, error) {
	if err := authorize(ctx, requester); err != nil {
		return nil, err
	}
	if err := Validate(fields); err != nil {
		return nil, err
	}

	book := &types.Book{Id: id, BookFields: fields.Clone()}

	s.mu.Lock()
	ok, err := s.repo.Update(ctx, book)
	if err == nil && ok {
		s.publish(ctx)
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("book %d: %w", id, apperr.ErrNotFound)
	}

	s.l.InfoContext(ctx, "Book updated", slog.Int64("book_id", id))
	return book.Clone(), wait(ctx, s.delays.Mutate)
}

func (s *Service) Delete(ctx context.Context, id int64, requester policy.Session) error {
	if err := authorize(ctx, requester); err != nil {
		return err
	}

	s.mu.Lock()
	ok, err := s.repo.Delete(ctx, id)
	if err == nil && ok {
		s.publish(ctx)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("book %d: %w", id, apperr.ErrNotFound)
	}

	s.l.InfoContext(ctx, "Book deleted", slog.Int64("book_id", id))
	return wait(ctx, s.delays.Mutate)
}

// Purchase records the book as bought by the buyer's bound identity and returns the updated identity.
func (s *Service) Purchase(ctx context.Context, id int64, buyer Buyer) (*types.User, error) {
	if o := policy.RequireAuthenticated(ctx, buyer, ""); !o.Allowed {
		return nil, fmt.Errorf("log in to purchase books: %w", apperr.ErrUnauthorized)
	}

	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}

	u, err := buyer.RecordPurchase(ctx, id)
	if err != nil {
		return nil, err
	}

	return u, wait(ctx, s.delays.Purchase)
}

// Import adds books without an authorization check. Invalid entries are skipped and logged;
// the stored books are returned.
func (s *Service) Import(ctx context.Context, fields ...types.BookFields) ([]*types.Book, error) {
	valid := make([]types.BookFields, 0, len(fields))
	for _, f := range fields {
		if err := Validate(f); err != nil {
			s.l.WarnContext(ctx, "Skipping invalid book", slog.String("isbn", f.ISBN), slog.Any("err", err))
			continue
		}
		valid = append(valid, f)
	}

	if len(valid) == 0 {
		return []*types.Book{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	maxId, err := s.repo.MaxId(ctx)
	if err != nil {
		return nil, err
	}

	stored := make([]*types.Book, 0, len(valid))
	for ix, f := range valid {
		stored = append(stored, &types.Book{Id: maxId + int64(ix) + 1, BookFields: f.Clone()})
	}

	if err := s.repo.Insert(ctx, stored...); err != nil {
		return nil, err
	}

	s.publish(ctx)
	s.l.InfoContext(ctx, "Books imported", slog.Int("count", len(stored)))
	return stored, nil
}

// publish must be called with mu held, after the mutation is committed.
func (s *Service) publish(ctx context.Context) {
	s.version.Add(1)

	s.subMu.RLock()
	defer s.subMu.RUnlock()

	if len(s.subs) == 0 {
		return
	}

	snapshot, err := s.repo.All(ctx)
	if err != nil {
		s.l.ErrorContext(ctx, "Failed to load collection for observers", slog.Any("err", err))
		return
	}

	for _, fn := range s.subs {
		own := make([]*types.Book, len(snapshot))
		for i, b := range snapshot {
			own[i] = b.Clone()
		}
		fn(own)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
