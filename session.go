package magiclink

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionStore is a client-persisted key-value store, typically backed by cookies.
// The session occupies a single key, see Config.SessionKey.
type SessionStore interface {
	// Get returns the value stored under key.
	Get(key string) (value string, ok bool)

	// Set stores value under key.
	Set(key, value string)

	// Remove removes key.
	Remove(key string)
}

// sessionClaims is the payload of an encoded session.
type sessionClaims struct {
	User *User `json:"user"`
	jwt.RegisteredClaims
}

// SessionCodec serializes the session user into a signed string (a JWT),
// so a client cannot forge or alter it.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionCodec creates a new SessionCodec signing with secret.
// Encoded sessions are valid for ttl.
func NewSessionCodec(secret string, ttl time.Duration) *SessionCodec {
	return &SessionCodec{secret: []byte(secret), ttl: ttl}
}

// Encode returns the signed representation of user.
func (c *SessionCodec) Encode(user *User, now time.Time) (string, error) {
	claims := sessionClaims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return s, nil
}

// Decode verifies value at the given time and returns the user it holds.
// ErrInvalidSession is returned for tampered, expired or malformed values.
func (c *SessionCodec) Decode(value string, now time.Time) (*User, error) {
	claims := &sessionClaims{}
	keyFunc := func(t *jwt.Token) (any, error) { return c.secret, nil }
	_, err := jwt.ParseWithClaims(value, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if claims.User == nil || claims.User.ID == "" || claims.User.ID != claims.Subject {
		return nil, ErrInvalidSession
	}
	return claims.User, nil
}
