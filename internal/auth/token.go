package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/userhub/accounts/internal/db"
)

const (
	AccessTokenExpiry  = 15 * time.Minute
	RefreshTokenExpiry = 7 * 24 * time.Hour

	refreshTokenBytes = 32
)

var (
	ErrSigningKeyMissing = errors.New("signing key missing")
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
)

type Claims struct {
	UserID      string   `json:"uid"`
	Email       string   `json:"email"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// TokenSet is the output of Sign. RefreshToken is the plaintext value handed
// to the client; only HashToken(RefreshToken) is persisted.
type TokenSet struct {
	AccessToken      string
	RefreshToken     string
	Permissions      []string
	AccessExpiresIn  time.Duration
	RefreshExpiresAt time.Time
	IssuedAt         time.Time
}

type Signer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewSigner returns ErrSigningKeyMissing for an empty secret. Zero TTLs fall
// back to AccessTokenExpiry and RefreshTokenExpiry.
func NewSigner(secret, issuer string, accessTTL, refreshTTL time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, ErrSigningKeyMissing
	}
	if accessTTL <= 0 {
		accessTTL = AccessTokenExpiry
	}
	if refreshTTL <= 0 {
		refreshTTL = RefreshTokenExpiry
	}
	return &Signer{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func (s *Signer) AccessTTL() time.Duration { return s.accessTTL }

// Sign issues an access token carrying the user's identity and permissions,
// and an unrelated random refresh token.
func (s *Signer) Sign(user *db.User) (*TokenSet, error) {
	if s == nil || len(s.secret) == 0 {
		return nil, ErrSigningKeyMissing
	}

	now := s.now()
	permissions := user.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	claims := &Claims{
		UserID:      user.ID.String(),
		Email:       user.Email,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	refreshToken, err := newRefreshToken()
	if err != nil {
		return nil, err
	}

	return &TokenSet{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		Permissions:      permissions,
		AccessExpiresIn:  s.accessTTL,
		RefreshExpiresAt: now.Add(s.refreshTTL),
		IssuedAt:         now,
	}, nil
}

// ParseAccess verifies an access token's signature and issuer. Expiry is
// enforced unless allowExpired is set.
func (s *Signer) ParseAccess(tokenString string, allowExpired bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	} else {
		opts = append(opts, jwt.WithExpirationRequired(), jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if allowExpired && claims.Issuer != s.issuer {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func newRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken is the storage form of a refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
