package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrWrongKind    = errors.New("token kind mismatch")
	ErrEmptySecret  = errors.New("jwt secret must not be empty")
)

// Kind distinguishes user session tokens from admin tokens. Both are signed with
// the same key, so the kind claim is what keeps one from being used as the other.
type Kind string

const (
	KindSession Kind = "session"
	KindAdmin   Kind = "admin"
)

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id,omitempty"`
	Type   Kind   `json:"type"`
}

// Manager handles JWT operations.
type Manager struct {
	secret          []byte
	issuer          string
	sessionDuration time.Duration
	adminDuration   time.Duration
	now             func() time.Time
}

// NewManager creates a new HS256 JWT manager.
func NewManager(secret, issuer string, sessionDuration, adminDuration time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Manager{
		secret:          []byte(secret),
		issuer:          issuer,
		sessionDuration: sessionDuration,
		adminDuration:   adminDuration,
		now:             time.Now,
	}, nil
}

// SessionDuration is the lifetime of session tokens, used for cookie max-age.
func (m *Manager) SessionDuration() time.Duration { return m.sessionDuration }

// AdminDuration is the lifetime of admin tokens.
func (m *Manager) AdminDuration() time.Duration { return m.adminDuration }

// IssueSession creates a session token for userID.
func (m *Manager) IssueSession(userID string) (string, error) {
	return m.issue(userID, KindSession, m.sessionDuration)
}

// IssueAdmin creates an admin token. It carries no user id.
func (m *Manager) IssueAdmin() (string, error) {
	return m.issue("", KindAdmin, m.adminDuration)
}

// Validate parses tokenString and checks that it is of the expected kind.
func (m *Manager) Validate(tokenString string, kind Kind) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != kind {
		return nil, ErrWrongKind
	}
	if kind == KindSession && claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (m *Manager) issue(userID string, kind Kind, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
		Type:   kind,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}
