package users

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/userhub/accounts/internal/auth"
	"github.com/userhub/accounts/internal/db"
)

var errStoreDown = errors.New("store down")

type memStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*db.User
	err   error
}

func newMemStore() *memStore {
	return &memStore{users: make(map[uuid.UUID]*db.User)}
}

func (s *memStore) emailTaken(email string, except uuid.UUID) bool {
	for id, u := range s.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (s *memStore) Create(ctx context.Context, user *db.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.emailTaken(user.Email, uuid.Nil) {
		return db.ErrEmailExists
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*db.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) List(ctx context.Context, limit, offset int) ([]*db.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	all := make([]*db.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []*db.User{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *memStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return len(s.users), nil
}

func (s *memStore) Update(ctx context.Context, user *db.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	u, ok := s.users[user.ID]
	if !ok {
		return db.ErrUserNotFound
	}
	if s.emailTaken(user.Email, user.ID) {
		return db.ErrEmailExists
	}
	cp := *user
	cp.PasswordHash = u.PasswordHash
	cp.UpdatedAt = time.Now()
	s.users[user.ID] = &cp
	user.UpdatedAt = cp.UpdatedAt
	return nil
}

func (s *memStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	u, ok := s.users[id]
	if !ok {
		return db.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.users[id]; !ok {
		return db.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memStore) passwordHash(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u.PasswordHash
	}
	return ""
}

type recordingRevoker struct {
	mu      sync.Mutex
	revoked []uuid.UUID
	err     error
}

func (r *recordingRevoker) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.revoked = append(r.revoked, userID)
	return nil
}

func (r *recordingRevoker) calls() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.revoked...)
}

type recordingInvalidator struct {
	mu          sync.Mutex
	invalidated []uuid.UUID
}

func (r *recordingInvalidator) InvalidateProfile(ctx context.Context, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, userID)
}

func (r *recordingInvalidator) calls() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.invalidated...)
}

// offsetSpy records the offset List receives.
type offsetSpy struct {
	*memStore
	offsets []int
}

func (s *offsetSpy) List(ctx context.Context, limit, offset int) ([]*db.User, error) {
	s.offsets = append(s.offsets, offset)
	return s.memStore.List(ctx, limit, offset)
}

type testEnv struct {
	store       *memStore
	revoker     *recordingRevoker
	invalidator *recordingInvalidator
	hasher      *auth.BcryptHasher
	service     *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:       newMemStore(),
		revoker:     &recordingRevoker{},
		invalidator: &recordingInvalidator{},
		hasher:      auth.NewBcryptHasher(bcrypt.MinCost),
	}
	env.service = NewService(env.store, env.revoker, env.hasher).WithProfileInvalidator(env.invalidator)
	return env
}

// seed creates n users with strictly increasing creation times.
func (env *testEnv) seed(n int) []*db.User {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*db.User, 0, n)
	for i := 0; i < n; i++ {
		u := &db.User{
			ID:        uuid.New(),
			Email:     "user" + string(rune('a'+i)) + "@example.com",
			FullName:  "User",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := env.store.Create(context.Background(), u); err != nil {
			panic(err)
		}
		out = append(out, u)
	}
	return out
}
