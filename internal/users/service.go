package users

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/userhub/accounts/internal/auth"
	"github.com/userhub/accounts/internal/db"
	"github.com/userhub/accounts/internal/logger"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

// ErrPageOutOfRange is returned when the page offset does not fit an int.
var ErrPageOutOfRange = errors.New("page out of range")

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Store interface {
	Create(ctx context.Context, user *db.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	List(ctx context.Context, limit, offset int) ([]*db.User, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, user *db.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionRevoker ends every refresh session of a user.
type SessionRevoker interface {
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

// ProfileInvalidator drops cached profile views after admin writes.
type ProfileInvalidator interface {
	InvalidateProfile(ctx context.Context, userID uuid.UUID)
}

// User is the admin view of an account.
type User struct {
	*auth.Profile
	Permissions []string `json:"permissions"`
}

func userFromRecord(u *db.User) *User {
	permissions := u.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	return &User{Profile: auth.ProfileFromUser(u), Permissions: permissions}
}

type Page struct {
	Items []*User `json:"items"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}

// CreateInput carries no permissions: accounts created here start with none.
type CreateInput struct {
	Email    string
	Password string
	FullName string
	Birthday *time.Time
	Phone    string
	Gender   string
}

// UpdateInput replaces email and full name. Optional fields left nil keep
// their stored value; a non-empty Password is re-hashed.
type UpdateInput struct {
	Email    string
	FullName string
	Password string
	Birthday *time.Time
	Phone    *string
	Gender   *string
}

type Service struct {
	store    Store
	sessions SessionRevoker
	hasher   auth.Hasher
	profiles ProfileInvalidator
	log      *logger.Logger
	now      func() time.Time
}

func NewService(store Store, sessions SessionRevoker, hasher auth.Hasher) *Service {
	return &Service{
		store:    store,
		sessions: sessions,
		hasher:   hasher,
		log:      logger.Default().WithComponent("users"),
		now:      time.Now,
	}
}

func (s *Service) WithProfileInvalidator(p ProfileInvalidator) *Service {
	s.profiles = p
	return s
}

// List returns one page of users. page is 1-based; limit is clamped to
// MaxPageSize.
func (s *Service) List(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if page-1 > math.MaxInt/limit {
		return nil, ErrPageOutOfRange
	}

	records, err := s.store.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]*User, 0, len(records))
	for _, u := range records {
		items = append(items, userFromRecord(u))
	}
	return &Page{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &db.User{
		ID:           uuid.New(),
		Email:        normalizeEmail(in.Email),
		PasswordHash: passwordHash,
		FullName:     in.FullName,
		Birthday:     in.Birthday,
		Phone:        in.Phone,
		Gender:       in.Gender,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	s.log.Info(ctx, "user created", map[string]interface{}{"user_id": user.ID.String()})
	return userFromRecord(user), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return userFromRecord(user), nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*User, error) {
	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}

	user.Email = normalizeEmail(in.Email)
	user.FullName = in.FullName
	if in.Birthday != nil {
		user.Birthday = in.Birthday
	}
	if in.Phone != nil {
		user.Phone = *in.Phone
	}
	if in.Gender != nil {
		user.Gender = *in.Gender
	}

	if err := s.store.Update(ctx, user); err != nil {
		if errors.Is(err, db.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, mapNotFound(err)
	}
	s.invalidate(ctx, id)

	if in.Password != "" {
		if err := s.setPassword(ctx, id, in.Password); err != nil {
			return nil, err
		}
	}

	s.log.Info(ctx, "user updated", map[string]interface{}{"user_id": id.String()})
	return userFromRecord(user), nil
}

// SetPassword replaces the password and ends every session of the user.
func (s *Service) SetPassword(ctx context.Context, id uuid.UUID, password string) error {
	if err := s.setPassword(ctx, id, password); err != nil {
		return err
	}
	s.log.Info(ctx, "user password reset", map[string]interface{}{"user_id": id.String()})
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return mapNotFound(err)
	}
	s.invalidate(ctx, id)
	s.log.Info(ctx, "user deleted", map[string]interface{}{"user_id": id.String()})
	return nil
}

func (s *Service) setPassword(ctx context.Context, id uuid.UUID, password string) error {
	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, id, passwordHash); err != nil {
		return mapNotFound(err)
	}
	return s.sessions.DeleteAllForUser(ctx, id)
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if s.profiles != nil {
		s.profiles.InvalidateProfile(ctx, id)
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, db.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
