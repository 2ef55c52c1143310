// Package session owns the single "who is using the catalog" slot and the catalog of known
// identities. A Store is either anonymous or bound to one identity; every transition is
// persisted to the state repository and pushed to subscribers before the call returns.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bookcatalog/internal/apperr"
	"bookcatalog/internal/storage/state"
	"bookcatalog/internal/storage/users"
	"bookcatalog/internal/types"
	"bookcatalog/internal/validator"
)

// PremiumChecker tells whether a book needs a purchase before it can be read.
type PremiumChecker interface {
	IsPremium(ctx context.Context, bookId int64) (bool, error)
}

// Delays simulate the round trip of each kind of operation.
type Delays struct {
	Login   time.Duration
	Logout  time.Duration
	Profile time.Duration
}

// ScaledDelays keeps the proportions of the default delays (login 800ms, logout 300ms,
// profile changes 500ms) with logout taking base.
func ScaledDelays(base time.Duration) Delays {
	return Delays{
		Login:   base * 8 / 3,
		Logout:  base,
		Profile: base * 5 / 3,
	}
}

type Options struct {
	SecretKey  []byte
	TokenTTL   time.Duration
	BcryptCost int
	Delays     Delays
}

type Store struct {
	users users.Repository
	state state.Repository
	books PremiumChecker
	opts  Options
	l     *slog.Logger

	// mu serializes transitions; current is readable without it
	mu      sync.Mutex
	current atomic.Pointer[types.User]

	subMu   sync.RWMutex
	subs    map[uint64]func(*types.User)
	nextSub uint64
}

func New(ur users.Repository, sr state.Repository, books PremiumChecker, opts Options, l *slog.Logger) *Store {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}

	return &Store{
		users: ur,
		state: sr,
		books: books,
		opts:  opts,
		l:     l,
		subs:  make(map[uint64]func(*types.User)),
	}
}

// Subscribe registers fn to receive the new identity (nil when anonymous) after every transition.
// fn runs synchronously while the transition holds the store, so it may read the store but must
// not start another transition.
func (s *Store) Subscribe(fn func(*types.User)) (cancel func()) {
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

// Restore loads the identity persisted by a previous process. Malformed entries are discarded
// together with the token and the store stays anonymous.
func (s *Store) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.state.Get(ctx, state.KeyCurrentUser)
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}
	if data == nil {
		return nil
	}

	var u types.User
	if err := json.Unmarshal(data, &u); err != nil || !structurallyValid(&u) {
		s.l.WarnContext(ctx, "Discarding malformed persisted identity", slog.Any("err", err))
		s.clearStored(ctx)
		return nil
	}

	u.PasswordHash = ""
	s.setCurrent(u.Clone())
	s.l.DebugContext(ctx, "Session restored", slog.Int64("user_id", u.Id))
	return nil
}

func structurallyValid(u *types.User) bool {
	return u.Id > 0 && u.Email != "" && u.Username != ""
}

func (s *Store) Login(ctx context.Context, email, password string) (*types.User, error) {
	v := validator.New()
	v.Check(email != "", "email", "must be provided")
	v.Check(password != "", "password", "must be provided")
	if email != "" {
		v.Check(validator.Matches(email, validator.EmailRX), "email", "must be a valid email address")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	u, err := s.authenticate(ctx, email, password)
	if err == nil {
		err = s.bind(ctx, u)
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	s.l.InfoContext(ctx, "User logged in", slog.Int64("user_id", u.Id))
	return u.Public(), wait(ctx, s.opts.Delays.Login)
}

func (s *Store) authenticate(ctx context.Context, email, password string) (*types.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}

	return u, nil
}

func (s *Store) Register(ctx context.Context, reg types.Registration) (*types.User, error) {
	v := validator.New()
	v.Struct(reg)
	if err := v.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	u, err := s.register(ctx, reg)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	s.l.InfoContext(ctx, "User registered", slog.Int64("user_id", u.Id))
	return u.Public(), wait(ctx, s.opts.Delays.Login)
}

func (s *Store) register(ctx context.Context, reg types.Registration) (*types.User, error) {
	if err := s.checkUnique(ctx, 0, reg.Email, reg.Username); err != nil {
		return nil, err
	}

	maxId, err := s.users.MaxId(ctx)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &types.User{
		Id:             maxId + 1,
		Email:          reg.Email,
		Username:       reg.Username,
		PasswordHash:   string(hash),
		FirstName:      reg.FirstName,
		LastName:       reg.LastName,
		IsAuthor:       reg.IsAuthor,
		PurchasedBooks: []int64{},
		CreatedAt:      time.Now().UTC(),
		Avatar:         AvatarURL(reg.FirstName, reg.LastName),
	}

	rollback, err := s.storeSession(ctx, u)
	if err != nil {
		return nil, err
	}

	if err := s.users.Insert(ctx, u); err != nil {
		rollback()
		return nil, err
	}

	s.setCurrent(u.Public())
	return u, nil
}

// checkUnique fails with ErrConflict when another identity (not selfId) uses email or username.
func (s *Store) checkUnique(ctx context.Context, selfId int64, email, username string) error {
	if email != "" {
		other, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if other != nil && other.Id != selfId {
			return fmt.Errorf("email %s: %w", email, apperr.ErrConflict)
		}
	}

	if username != "" {
		other, err := s.users.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if other != nil && other.Id != selfId {
			return fmt.Errorf("username %s: %w", username, apperr.ErrConflict)
		}
	}

	return nil
}

// AvatarURL builds the generated avatar reference for a new identity.
func AvatarURL(firstName, lastName string) string {
	name := strings.ReplaceAll(url.QueryEscape(firstName+"+"+lastName), "+", "%20")
	return "https://ui-avatars.com/api/?name=" + name + "&background=6366f1&color=fff"
}

// Logout always leaves the store anonymous. Storage failures are logged, and the only error
// returned is the context's when it ends before the simulated delay.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	prev := s.current.Load()
	s.clearStored(ctx)
	s.mu.Unlock()

	if prev != nil {
		s.l.InfoContext(ctx, "User logged out", slog.Int64("user_id", prev.Id))
	}
	return wait(ctx, s.opts.Delays.Logout)
}

func (s *Store) clearStored(ctx context.Context) {
	for _, key := range []string{state.KeyCurrentUser, state.KeyAuthToken} {
		if err := s.state.Delete(ctx, key); err != nil {
			s.l.ErrorContext(ctx, "Failed to clear persisted session", slog.String("key", key), slog.Any("err", err))
		}
	}
	s.setCurrent(nil)
}

// bind persists u and a fresh token, then makes u the current identity.
func (s *Store) bind(ctx context.Context, u *types.User) error {
	if _, err := s.storeSession(ctx, u); err != nil {
		return err
	}

	s.setCurrent(u.Public())
	return nil
}

// storeSession writes u and a fresh token to the persisted session. Both keys change or
// neither does: a failed write puts back what was stored before. The returned rollback does
// the same for a caller that fails afterwards.
func (s *Store) storeSession(ctx context.Context, u *types.User) (rollback func(), err error) {
	token, err := GenerateToken(u.Id, s.opts.SecretKey, s.opts.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}

	keys := []string{state.KeyCurrentUser, state.KeyAuthToken}
	prev := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if prev[key], err = s.state.Get(ctx, key); err != nil {
			return nil, fmt.Errorf("reading persisted session: %w", err)
		}
	}

	rollback = func() {
		for _, key := range keys {
			var err error
			if prev[key] == nil {
				err = s.state.Delete(ctx, key)
			} else {
				err = s.state.Set(ctx, key, prev[key])
			}
			if err == nil {
				continue
			}

			s.l.ErrorContext(ctx, "Failed to restore persisted session", slog.String("key", key), slog.Any("err", err))
			// a half-restored session must not outlive the process
			for _, k := range keys {
				_ = s.state.Delete(ctx, k)
			}
			return
		}
	}

	if err := s.persist(ctx, u); err != nil {
		rollback()
		return nil, err
	}

	if err := s.state.Set(ctx, state.KeyAuthToken, []byte(token)); err != nil {
		rollback()
		return nil, fmt.Errorf("persisting session token: %w", err)
	}

	return rollback, nil
}

func (s *Store) persist(ctx context.Context, u *types.User) error {
	data, err := json.Marshal(u.Public())
	if err != nil {
		return err
	}

	if err := s.state.Set(ctx, state.KeyCurrentUser, data); err != nil {
		return fmt.Errorf("persisting identity: %w", err)
	}
	return nil
}

func (s *Store) setCurrent(u *types.User) {
	s.current.Store(u)

	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, fn := range s.subs {
		fn(u.Clone())
	}
}

// Current returns a credential-free copy of the bound identity, or nil.
func (s *Store) Current() *types.User {
	return s.current.Load().Clone()
}

// IsAuthenticated requires both a bound identity and a persisted token.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	if s.current.Load() == nil {
		return false
	}

	token, err := s.state.Get(ctx, state.KeyAuthToken)
	if err != nil {
		s.l.ErrorContext(ctx, "Failed to read session token", slog.Any("err", err))
		return false
	}

	return len(token) > 0
}

func (s *Store) IsAuthor() bool {
	u := s.current.Load()
	return u != nil && u.IsAuthor
}

// TokenValid reports whether the persisted token is intact, unexpired and issued to the bound identity.
func (s *Store) TokenValid(ctx context.Context) bool {
	u := s.current.Load()
	if u == nil {
		return false
	}

	token, err := s.state.Get(ctx, state.KeyAuthToken)
	if err != nil || len(token) == 0 {
		return false
	}

	id, err := UserIDFromToken(string(token), s.opts.SecretKey)
	if err != nil {
		s.l.DebugContext(ctx, "Session token rejected", slog.Any("err", err))
		return false
	}

	return id == u.Id
}

// HasAccessToBook is true for books that are not premium, and for premium books the bound
// identity has purchased.
func (s *Store) HasAccessToBook(ctx context.Context, bookId int64) (bool, error) {
	premium, err := s.books.IsPremium(ctx, bookId)
	if err != nil {
		return false, err
	}

	if !premium {
		return true, nil
	}

	return s.current.Load().HasPurchased(bookId), nil
}

// RecordPurchase adds bookId to the bound identity's purchases, both in the identity catalog
// and in the persisted session.
func (s *Store) RecordPurchase(ctx context.Context, bookId int64) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.stored(ctx)
	if err != nil {
		return nil, err
	}

	if u.HasPurchased(bookId) {
		return nil, fmt.Errorf("book %d: %w", bookId, apperr.ErrAlreadyOwned)
	}

	u.PurchasedBooks = append(u.PurchasedBooks, bookId)

	if err := s.save(ctx, u); err != nil {
		return nil, err
	}

	s.l.InfoContext(ctx, "Book purchased", slog.Int64("user_id", u.Id), slog.Int64("book_id", bookId))
	return u.Public(), nil
}

// stored loads the full record of the bound identity from the identity catalog.
func (s *Store) stored(ctx context.Context) (*types.User, error) {
	cur := s.current.Load()
	if cur == nil {
		return nil, apperr.ErrUnauthorized
	}

	u, err := s.users.GetById(ctx, cur.Id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %d: %w", cur.Id, apperr.ErrNotFound)
	}

	return u, nil
}

// save writes u to the identity catalog and the persisted session, then publishes it.
func (s *Store) save(ctx context.Context, u *types.User) error {
	ok, err := s.users.Update(ctx, u)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %d: %w", u.Id, apperr.ErrNotFound)
	}

	if err := s.persist(ctx, u); err != nil {
		return err
	}

	s.setCurrent(u.Public())
	return nil
}

// UpdateProfile changes the bound identity's profile. Identifier, creation time, author
// capability and purchases cannot change through it.
func (s *Store) UpdateProfile(ctx context.Context, upd types.ProfileUpdate) (*types.User, error) {
	v := validator.New()
	v.Struct(upd)
	if err := v.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	u, err := s.updateProfile(ctx, upd)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return u.Public(), wait(ctx, s.opts.Delays.Profile)
}

func (s *Store) updateProfile(ctx context.Context, upd types.ProfileUpdate) (*types.User, error) {
	u, err := s.stored(ctx)
	if err != nil {
		return nil, err
	}

	var email, username string
	if upd.Email != nil {
		email = *upd.Email
	}
	if upd.Username != nil {
		username = *upd.Username
	}
	if err := s.checkUnique(ctx, u.Id, email, username); err != nil {
		return nil, err
	}

	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}

	return u, s.save(ctx, u)
}

func (s *Store) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	v := validator.New()
	v.Check(currentPassword != "", "currentPassword", "must be provided")
	v.Check(len(newPassword) >= 6, "newPassword", "must be at least 6 characters long")
	if err := v.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	err := s.changePassword(ctx, currentPassword, newPassword)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	return wait(ctx, s.opts.Delays.Profile)
}

func (s *Store) changePassword(ctx context.Context, currentPassword, newPassword string) error {
	u, err := s.stored(ctx)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		return apperr.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	u.PasswordHash = string(hash)
	return s.save(ctx, u)
}

// GetUser looks up any known identity, without its credential.
func (s *Store) GetUser(ctx context.Context, id int64) (*types.User, error) {
	u, err := s.users.GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %d: %w", id, apperr.ErrNotFound)
	}
	return u.Public(), nil
}

// Refresh reloads the bound identity from the identity catalog. It returns nil when anonymous.
func (s *Store) Refresh(ctx context.Context) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.stored(ctx)
	if errors.Is(err, apperr.ErrUnauthorized) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, u); err != nil {
		return nil, err
	}

	s.setCurrent(u.Public())
	return u.Public(), nil
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
