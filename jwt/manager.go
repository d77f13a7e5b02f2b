package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType is carried in the "typ" claim so access and refresh tokens can never be swapped.
type TokenType string

const (
	// TypeAccess marks short-lived access tokens.
	TypeAccess TokenType = "access"
	// TypeRefresh marks long-lived refresh tokens.
	TypeRefresh TokenType = "refresh"
)

const minSecretBytes = 32

var (
	ErrInvalidToken     = errors.New("jwt: invalid token")
	ErrWrongTokenType   = errors.New("jwt: unexpected token type")
	ErrIATInFuture      = errors.New("jwt: token iat too far in the future")
	ErrMissingSubject   = errors.New("jwt: token has no subject")
	errSecretTooShort   = errors.New("jwt secret must be at least 32 bytes")
	errInvalidTTL       = errors.New("invalid TTL configuration")
	errInvalidTokenType = errors.New("unsupported token type")
)

// Config defines one signing domain. Access and refresh tokens each get their own Manager
// with a distinct Secret.
type Config struct {
	Type         TokenType
	Secret       []byte
	TTL          time.Duration
	Issuer       string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
	// Now overrides the clock. Used by tests.
	Now func() time.Time
}

// Manager signs and verifies HS256 tokens for a single TokenType.
type Manager struct {
	config Config
}

// Claims is the on-the-wire claim set shared by access and refresh tokens.
type Claims struct {
	SecondFactorAuthenticated bool      `json:"isSecondFactorAuthenticated"`
	Type                      TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the "sub" claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errInvalidTTL
	}
	switch cfg.Type {
	case TypeAccess, TypeRefresh:
	default:
		return nil, errInvalidTokenType
	}
	if len(cfg.Secret) < minSecretBytes {
		return nil, errSecretTooShort
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	return &Manager{config: cfg}, nil
}

// TTL reports the lifetime stamped on issued tokens.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Issue signs a token for userID. Every token carries a random jti so two tokens issued
// for the same user in the same second are still distinct.
func (m *Manager) Issue(userID string, secondFactorAuthenticated bool) (string, error) {
	if userID == "" {
		return "", ErrMissingSubject
	}

	now := m.config.Now()
	claims := Claims{
		SecondFactorAuthenticated: secondFactorAuthenticated,
		Type:                      m.config.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.Secret)
}

// Parse verifies the signature, expiry, issuer and token type.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.config.Now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != m.config.Type {
		return nil, ErrWrongTokenType
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	if claims.IssuedAt != nil {
		maxAllowed := m.config.Now().Add(m.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, ErrIATInFuture
		}
	}

	return claims, nil
}
