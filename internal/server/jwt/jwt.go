// Package jwt issues and validates the signed access and refresh tokens.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/crypto"
	"github.com/iudanet/tgauth/internal/models"
)

// Типы токенов (claim "type")
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Значения по умолчанию
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultIssuer     = "tgauth"
)

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	Tenant string   `json:"tenant,omitempty"`
	Type   string   `json:"type"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// RefreshClaims are the claims carried by a refresh token.
// The random jti makes every refresh token unique even when issued in the same second
type RefreshClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Config содержит параметры подписи
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Signer provides JWT token generation and validation
type Signer struct {
	now        func() time.Time
	random     *crypto.TokenGenerator
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// WithRandom sets the entropy source for token ids.
func WithRandom(g *crypto.TokenGenerator) Option {
	return func(s *Signer) { s.random = g }
}

// NewSigner creates a new signer.
// secret should be a cryptographically secure random string
func NewSigner(cfg Config, opts ...Option) (*Signer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}

	s := &Signer{
		now:        time.Now,
		random:     crypto.NewTokenGenerator(nil),
		secret:     cfg.Secret,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
	if s.issuer == "" {
		s.issuer = DefaultIssuer
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTTL
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *Signer) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *Signer) RefreshTTL() time.Duration { return s.refreshTTL }

// GenerateAccessToken создает новый JWT access token.
// Возвращает токен и время жизни в секундах
func (s *Signer) GenerateAccessToken(p models.Principal) (string, int64, error) {
	now := s.now()

	claims := AccessClaims{
		Tenant: p.TenantID,
		Roles:  p.Roles,
		Type:   TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign access token: %w", err)
	}

	return token, int64(s.accessTTL.Seconds()), nil
}

// GenerateRefreshToken создает новый refresh token для пользователя
func (s *Signer) GenerateRefreshToken(userID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.refreshTTL)

	jti, err := s.random.Token()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token id: %w", err)
	}

	claims := RefreshClaims{
		Type: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return token, expiresAt, nil
}

// ValidateAccessToken валидирует и парсит JWT access token
func (s *Signer) ValidateAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(token, claims); err != nil {
		return nil, err
	}

	if claims.Type != TypeAccess || claims.Subject == "" {
		return nil, autherr.ErrInvalidToken
	}

	return claims, nil
}

// ValidateRefreshToken returns the subject of a valid refresh token.
func (s *Signer) ValidateRefreshToken(token string) (string, error) {
	claims := &RefreshClaims{}
	if err := s.parse(token, claims); err != nil {
		return "", err
	}

	if claims.Type != TypeRefresh || claims.Subject == "" {
		return "", autherr.ErrInvalidToken
	}

	return claims.Subject, nil
}

func (s *Signer) parse(token string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", autherr.ErrInvalidToken, err)
	}

	return nil
}
