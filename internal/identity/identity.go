// Package identity resolves bearer tokens into a user id or the guest.
//
// Tokens are HS256 JWTs whose subject is the user id. An empty token is
// the guest; a malformed or expired token is an error, never a silent
// downgrade to guest.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akinrinmade/jara-daily/internal/clock"
)

const (
	// Issuer is the iss claim on minted tokens.
	Issuer = "jara-daily"

	// DefaultTTL is the lifetime of minted tokens.
	DefaultTTL = 24 * time.Hour
)

var (
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNoSecret is returned when the manager has no signing secret.
	ErrNoSecret = errors.New("jwt secret is not configured")
)

// Identity is the resolved caller. UserID is empty for the guest.
type Identity struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// Guest is the unauthenticated identity.
var Guest = Identity{}

// IsGuest reports whether the identity is the guest.
func (i Identity) IsGuest() bool {
	return i.UserID == ""
}

// Claims are the token claims.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Manager mints and verifies tokens with a shared secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTTL sets the minted token lifetime.
func WithTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithClock sets the clock used for iat/exp and verification.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// NewManager creates a Manager. The secret must be non-empty.
func NewManager(secret string, opts ...ManagerOption) (*Manager, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	m := &Manager{secret: []byte(secret), ttl: DefaultTTL, clock: clock.System{}}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Mint returns a signed token for userID.
func (m *Manager) Mint(userID, username string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("mint token: empty user id")
	}
	now := m.clock.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// Resolve verifies token and returns the identity it names. An empty
// token resolves to Guest.
func (m *Manager) Resolve(token string) (Identity, error) {
	if token == "" {
		return Guest, nil
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return Guest, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Guest, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Identity{UserID: claims.Subject, Username: claims.Username}, nil
}

// BearerToken extracts the token from an Authorization header value.
// Returns "" when the header is empty or not a bearer credential.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
