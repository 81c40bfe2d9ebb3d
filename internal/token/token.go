// Package token issues and verifies the short-lived bearer credentials used
// by the publishing endpoints.
package token

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTTL  = 300 * time.Second
	DefaultSkew = 240 * time.Second

	// PublisherID is the single identity every token is minted for.
	PublisherID int64 = 1
)

var (
	ErrNotConfigured     = errors.New("server not configured")
	ErrInvalidUsername   = errors.New("invalid username")
	ErrIncorrectPassword = errors.New("incorrect password")

	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrExpired          = errors.New("expired token")
	ErrNotYetValid      = errors.New("token not yet valid")
	ErrIssuerMismatch   = errors.New("issuer mismatch")
	ErrMalformedClaims  = errors.New("malformed claims")
)

// User is the subject carried inside a token.
type User struct {
	ID int64 `json:"id"`
}

// Data nests the subject the way WordPress JWT plugins do, so clients that
// already decode those tokens keep working.
type Data struct {
	User User `json:"user"`
}

type Claims struct {
	Data Data `json:"data"`

	jwt.RegisteredClaims
}

// UserID returns the subject's id, zero when absent.
func (c Claims) UserID() int64 { return c.Data.User.ID }

type Service struct {
	Secret   []byte
	Username string
	Password string

	TTL  time.Duration
	Skew time.Duration
	Now  func() time.Time
}

// New returns a Service with the default lifetime and skew.
func New(secret, username, password string) *Service {
	return &Service{
		Secret:   []byte(secret),
		Username: username,
		Password: password,
		TTL:      DefaultTTL,
		Skew:     DefaultSkew,
		Now:      time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTTL
}

// Configured reports whether the secret and the credential pair are set.
func (s *Service) Configured() bool {
	return len(s.Secret) > 0 && s.Username != "" && s.Password != ""
}

// Issue exchanges the publishing credentials for a signed token bound to
// issuer.
func (s *Service) Issue(username, password, issuer string) (string, Claims, error) {
	if !s.Configured() {
		return "", Claims{}, ErrNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.Username)) != 1 {
		return "", Claims{}, ErrInvalidUsername
	}
	if !s.checkPassword(password) {
		return "", Claims{}, ErrIncorrectPassword
	}

	now := s.now().UTC()
	claims := Claims{
		Data: Data{User: User{ID: PublisherID}},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl())),
		},
	}
	signed, err := s.Sign(claims)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

// Sign signs arbitrary claims with the shared secret.
func (s *Service) Sign(claims Claims) (string, error) {
	if len(s.Secret) == 0 {
		return "", ErrNotConfigured
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, lifetime, issuer and subject, in that order. The
// skew tolerance covers nbf and iat only; exp is enforced against the local
// clock.
func (s *Service) Verify(raw, expectedIssuer string) (Claims, error) {
	if len(s.Secret) == 0 {
		return Claims{}, ErrNotConfigured
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.Skew),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, classify(err)
	}

	if claims.ExpiresAt == nil {
		return Claims{}, ErrMalformedClaims
	}
	if !s.now().Before(claims.ExpiresAt.Time) {
		return Claims{}, ErrExpired
	}
	if !SameIssuer(claims.Issuer, expectedIssuer) {
		return Claims{}, ErrIssuerMismatch
	}
	if claims.UserID() == 0 {
		return Claims{}, ErrMalformedClaims
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidClaims):
		return ErrMalformedClaims
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
}

func (s *Service) checkPassword(password string) bool {
	if isBcrypt(s.Password) {
		return bcrypt.CompareHashAndPassword([]byte(s.Password), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.Password)) == 1
}

func isBcrypt(v string) bool {
	return strings.HasPrefix(v, "$2a$") || strings.HasPrefix(v, "$2b$") || strings.HasPrefix(v, "$2y$")
}

// SameIssuer compares two origins ignoring trailing slashes and letter case.
func SameIssuer(a, b string) bool {
	a = strings.ToLower(strings.TrimRight(strings.TrimSpace(a), "/"))
	b = strings.ToLower(strings.TrimRight(strings.TrimSpace(b), "/"))
	return a != "" && a == b
}
