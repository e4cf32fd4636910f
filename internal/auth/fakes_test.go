package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/userhub/accounts/internal/db"
)

type memUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*db.User

	// hideOnLookup makes GetByEmail miss, simulating a concurrent
	// registration that lands between the lookup and the insert.
	hideOnLookup bool

	// afterGet runs once, after the next GetByID has read its row.
	afterGet func()
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uuid.UUID]*db.User)}
}

func (s *memUserStore) Create(ctx context.Context, user *db.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return db.ErrEmailExists
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memUserStore) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hideOnLookup {
		return nil, db.ErrUserNotFound
	}
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, db.ErrUserNotFound
}

func (s *memUserStore) GetByID(ctx context.Context, id uuid.UUID) (*db.User, error) {
	s.mu.Lock()
	hook := s.afterGet
	s.afterGet = nil
	u, ok := s.users[id]
	var cp db.User
	if ok {
		cp = *u
	}
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		return nil, db.ErrUserNotFound
	}
	return &cp, nil
}

func (s *memUserStore) Update(ctx context.Context, user *db.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[user.ID]
	if !ok {
		return db.ErrUserNotFound
	}
	hash := u.PasswordHash
	cp := *user
	cp.PasswordHash = hash
	cp.UpdatedAt = time.Now()
	s.users[user.ID] = &cp
	user.UpdatedAt = cp.UpdatedAt
	return nil
}

func (s *memUserStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return db.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *memUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *memUserStore) remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

type memTokenStore struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]*db.RefreshToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[uuid.UUID]*db.RefreshToken)}
}

func (s *memTokenStore) Create(ctx context.Context, token *db.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.tokens[token.ID] = &cp
	return nil
}

func (s *memTokenStore) FindActive(ctx context.Context, userID uuid.UUID, tokenHash string) (*db.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, t := range s.tokens {
		if t.UserID == userID && t.TokenHash == tokenHash && t.ExpiresAt.After(now) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memTokenStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, id)
	return nil
}

func (s *memTokenStore) Rotate(ctx context.Context, oldID uuid.UUID, next *db.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[oldID]; !ok {
		return db.ErrTokenNotFound
	}
	delete(s.tokens, oldID)
	cp := *next
	s.tokens[next.ID] = &cp
	return nil
}

func (s *memTokenStore) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tokens {
		if t.UserID == userID {
			delete(s.tokens, id)
		}
	}
	return nil
}

func (s *memTokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now()
	for id, t := range s.tokens {
		if !t.ExpiresAt.After(now) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

func (s *memTokenStore) countFor(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

type memCache struct {
	mu     sync.Mutex
	values map[string][]byte
	err    error
}

func newMemCache() *memCache {
	return &memCache{values: make(map[string][]byte)}
}

func (c *memCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	b, ok := c.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *memCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = b
	return nil
}

func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) IncCounter(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[name]++
}

func (m *countingMetrics) get(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

var errStoreDown = errors.New("store down")

const testSecret = "test-secret-key-for-signing-tokens"

func newTestSigner() *Signer {
	s, err := NewSigner(testSecret, "accounts", 15*time.Minute, 24*time.Hour)
	if err != nil {
		panic(err)
	}
	return s
}

type testEnv struct {
	users   *memUserStore
	tokens  *memTokenStore
	cache   *memCache
	metrics *countingMetrics
	signer  *Signer
	service *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		users:   newMemUserStore(),
		tokens:  newMemTokenStore(),
		cache:   newMemCache(),
		metrics: &countingMetrics{},
		signer:  newTestSigner(),
	}
	env.service = NewService(env.users, env.tokens, NewBcryptHasher(4), env.signer).
		WithProfileCache(env.cache, time.Minute).
		WithMetrics(env.metrics)
	return env
}
