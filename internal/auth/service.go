package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/userhub/accounts/internal/db"
	"github.com/userhub/accounts/internal/logger"
)

var (
	ErrEmailExists          = errors.New("email already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrOldPasswordIncorrect = errors.New("old password incorrect")
	ErrUserNotFound         = errors.New("user not found")
)

// Counter names reported to the metrics registry.
const (
	MetricRegister        = "auth_register_total"
	MetricLoginSuccess    = "auth_login_success_total"
	MetricLoginFailure    = "auth_login_failure_total"
	MetricRefresh         = "auth_refresh_total"
	MetricRefreshRejected = "auth_refresh_rejected_total"
)

// UserStore is the user persistence the service needs.
type UserStore interface {
	Create(ctx context.Context, user *db.User) error
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	Update(ctx context.Context, user *db.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// TokenStore persists refresh tokens by hash.
type TokenStore interface {
	Create(ctx context.Context, token *db.RefreshToken) error
	FindActive(ctx context.Context, userID uuid.UUID, tokenHash string) (*db.RefreshToken, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Rotate(ctx context.Context, oldID uuid.UUID, next *db.RefreshToken) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

// ProfileCache stores JSON values with a TTL. Implementations may fail;
// the service then falls back to the user store.
type ProfileCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Counter interface {
	IncCounter(name string)
}

// Profile is the public view of a user.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Birthday  string    `json:"birthday,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func ProfileFromUser(u *db.User) *Profile {
	p := &Profile{
		ID:        u.ID.String(),
		Email:     u.Email,
		FullName:  u.FullName,
		Phone:     u.Phone,
		Gender:    u.Gender,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.Birthday != nil {
		p.Birthday = u.Birthday.Format("2006-01-02")
	}
	return p
}

type AuthResult struct {
	User         *Profile `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	Permissions  []string `json:"permissions"`
	ExpiresIn    int      `json:"expiresIn"`
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Birthday *time.Time
	Phone    string
	Gender   string
}

// ProfileUpdate holds the editable non-credential fields. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	FullName *string
	Birthday *time.Time
	Phone    *string
	Gender   *string
}

type Service struct {
	users   UserStore
	tokens  TokenStore
	hasher  Hasher
	signer  *Signer
	cache   ProfileCache
	ttl     time.Duration
	metrics Counter
	log     *logger.Logger

	dummyOnce sync.Once
	dummyHash string

	// profileGen is bumped on every invalidation, striped by user id. A read
	// that overlapped an invalidation does not repopulate the cache.
	profileGen [64]atomic.Uint64
}

func NewService(users UserStore, tokens TokenStore, hasher Hasher, signer *Signer) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		signer: signer,
		log:    logger.Default().WithComponent("auth"),
	}
}

// WithProfileCache enables read-through caching of profiles.
func (s *Service) WithProfileCache(cache ProfileCache, ttl time.Duration) *Service {
	s.cache = cache
	s.ttl = ttl
	return s
}

func (s *Service) WithMetrics(metrics Counter) *Service {
	s.metrics = metrics
	return s
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, db.ErrUserNotFound) {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &db.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     in.FullName,
		Birthday:     in.Birthday,
		Phone:        in.Phone,
		Gender:       in.Gender,
		Permissions:  []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// A concurrent registration can win between the lookup and the insert;
	// the unique constraint reports it.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	s.inc(MetricRegister)
	s.log.Info(ctx, "user registered", map[string]interface{}{"user_id": user.ID.String()})

	return s.issue(ctx, user)
}

// Login returns ErrInvalidCredentials for both an unknown email and a wrong
// password.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			// Spend the same bcrypt time as a real comparison.
			s.hasher.Verify(s.dummy(), password)
			s.inc(MetricLoginFailure)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		s.inc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	s.inc(MetricLoginSuccess)
	return s.issue(ctx, user)
}

// Refresh exchanges a presented refresh token for a new token pair. The old
// token is consumed; presenting it again yields ErrUnauthorized.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID, presented string) (*AuthResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, s.rejectRefresh(ctx, userID, "user not found")
		}
		return nil, err
	}

	record, err := s.tokens.FindActive(ctx, user.ID, HashToken(presented))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, s.rejectRefresh(ctx, userID, "no active token")
	}

	set, err := s.signer.Sign(user)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Rotate(ctx, record.ID, newRecord(user.ID, set)); err != nil {
		if errors.Is(err, db.ErrTokenNotFound) {
			return nil, s.rejectRefresh(ctx, userID, "token already rotated")
		}
		return nil, err
	}

	s.inc(MetricRefresh)
	return newAuthResult(user, set), nil
}

// Logout revokes the presented refresh token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, presented string) error {
	record, err := s.tokens.FindActive(ctx, userID, HashToken(presented))
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	return s.tokens.Delete(ctx, record.ID)
}

// LogoutAll revokes every refresh token of the user.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.tokens.DeleteAllForUser(ctx, userID)
}

// ChangePassword replaces the password hash and revokes all refresh tokens,
// ending every other session of the user.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return ErrUnauthorized
		}
		return err
	}

	if !s.hasher.Verify(user.PasswordHash, oldPassword) {
		return ErrOldPasswordIncorrect
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	if err := s.tokens.DeleteAllForUser(ctx, userID); err != nil {
		return err
	}

	s.log.Info(ctx, "password changed", map[string]interface{}{"user_id": userID.String()})
	return nil
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	key := profileKey(userID)

	if s.cache != nil {
		var cached Profile
		found, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.Warn(ctx, "profile cache read failed", map[string]interface{}{"error": err.Error()})
		} else if found {
			return &cached, nil
		}
	}

	gen := s.generation(userID)
	before := gen.Load()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	profile := ProfileFromUser(user)
	if gen.Load() == before {
		s.storeProfile(ctx, userID, profile)
	}
	return profile, nil
}

// UpdateProfile writes non-credential fields only.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if update.FullName != nil {
		user.FullName = *update.FullName
	}
	if update.Birthday != nil {
		user.Birthday = update.Birthday
	}
	if update.Phone != nil {
		user.Phone = *update.Phone
	}
	if update.Gender != nil {
		user.Gender = *update.Gender
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.InvalidateProfile(ctx, userID)
	return ProfileFromUser(user), nil
}

// InvalidateProfile drops the cached profile of userID, if any.
func (s *Service) InvalidateProfile(ctx context.Context, userID uuid.UUID) {
	s.generation(userID).Add(1)
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, profileKey(userID)); err != nil {
		s.log.Warn(ctx, "profile cache invalidation failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) generation(userID uuid.UUID) *atomic.Uint64 {
	return &s.profileGen[int(userID[15])%len(s.profileGen)]
}

func (s *Service) storeProfile(ctx context.Context, userID uuid.UUID, profile *Profile) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, profileKey(userID), profile, s.ttl); err != nil {
		s.log.Warn(ctx, "profile cache write failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) issue(ctx context.Context, user *db.User) (*AuthResult, error) {
	set, err := s.signer.Sign(user)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Create(ctx, newRecord(user.ID, set)); err != nil {
		return nil, err
	}
	return newAuthResult(user, set), nil
}

func (s *Service) rejectRefresh(ctx context.Context, userID uuid.UUID, reason string) error {
	s.inc(MetricRefreshRejected)
	s.log.Warn(ctx, "refresh rejected", map[string]interface{}{
		"user_id": userID.String(),
		"reason":  reason,
	})
	return ErrUnauthorized
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func (s *Service) inc(name string) {
	if s.metrics != nil {
		s.metrics.IncCounter(name)
	}
}

func newRecord(userID uuid.UUID, set *TokenSet) *db.RefreshToken {
	return &db.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: HashToken(set.RefreshToken),
		ExpiresAt: set.RefreshExpiresAt,
		CreatedAt: set.IssuedAt,
	}
}

func newAuthResult(user *db.User, set *TokenSet) *AuthResult {
	return &AuthResult{
		User:         ProfileFromUser(user),
		AccessToken:  set.AccessToken,
		RefreshToken: set.RefreshToken,
		Permissions:  set.Permissions,
		ExpiresIn:    int(set.AccessExpiresIn.Seconds()),
	}
}

func profileKey(userID uuid.UUID) string {
	return "profile:" + userID.String()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
