package magiclink

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// MagicLink represents a single-use token which signs in its user.
type MagicLink struct {
	// Token is the unguessable value embedded in the link URL.
	Token string `bson:"token" json:"token"`

	// UserID of the owner. Existence of the user is only checked when the link is consumed.
	UserID string `bson:"user_id" json:"user_id"`

	// IsUsed tells if the link was consumed. Set exactly once.
	IsUsed bool `bson:"is_used" json:"is_used"`

	// ExpirationTime tells when this link expires.
	ExpirationTime time.Time `bson:"expiration_time" json:"expiration_time"`
}

// Expired tells if the link is expired at the given time.
func (ml *MagicLink) Expired(now time.Time) bool {
	return ml.ExpirationTime.Before(now)
}

// NewMagicLink returns a new, unused magic link of the given user
// with a random token of tokenBytes bytes.
func NewMagicLink(userID string, tokenBytes int, expiration time.Duration, now time.Time) (*MagicLink, error) {
	token, err := generateToken(tokenBytes)
	if err != nil {
		return nil, err
	}
	return &MagicLink{
		Token:          token,
		UserID:         userID,
		ExpirationTime: now.Add(expiration),
	}, nil
}

// generateToken returns a URL-safe random string from n random bytes.
func generateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// tokenPrefix returns a short prefix of token, safe to log.
func tokenPrefix(token string) string {
	if len(token) > 6 {
		return token[:6] + "..."
	}
	return token
}

// ValidateMagicLink tells if link may be consumed at the given time.
// link is nil if no link was found with the presented token.
// It has no side effects.
func ValidateMagicLink(link *MagicLink, now time.Time) error {
	switch {
	case link == nil:
		return ErrUnknownToken
	case link.IsUsed:
		return ErrAlreadyUsed
	case link.Expired(now):
		return ErrExpired
	}
	return nil
}

// MagicLinkRepository stores magic links.
// Lookups return ErrNotFound if no matching link exists.
type MagicLinkRepository interface {
	// InsertMagicLink creates and stores a new unused link for userID
	// expiring after expiration. userID is not checked.
	InsertMagicLink(ctx context.Context, userID string, expiration time.Duration) (*MagicLink, error)

	// MagicLinkByToken returns the link with the given token.
	MagicLinkByToken(ctx context.Context, token string) (*MagicLink, error)

	// UpdateMagicLink replaces the link identified by link.Token, and returns the stored result.
	UpdateMagicLink(ctx context.Context, link *MagicLink) (*MagicLink, error)

	// ConsumeMagicLink marks the link used if it is unused and not expired at now,
	// as a single atomic operation. It returns ErrNotFound if no such link exists.
	ConsumeMagicLink(ctx context.Context, token string, now time.Time) (*MagicLink, error)
}
