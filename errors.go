package magiclink

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by repositories when the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidToken is the common cause of every rejected magic link.
	// Use errors.Is(err, ErrInvalidToken) to detect any of the reasons below.
	ErrInvalidToken = errors.New("invalid or expired magic link")

	// ErrUnknownToken is returned if no magic link exists with the given token.
	ErrUnknownToken = fmt.Errorf("%w: not found", ErrInvalidToken)

	// ErrAlreadyUsed is returned if the magic link was already consumed.
	ErrAlreadyUsed = fmt.Errorf("%w: already used", ErrInvalidToken)

	// ErrExpired is returned if the magic link is past its expiration time.
	ErrExpired = fmt.Errorf("%w: expired", ErrInvalidToken)

	// ErrOrphanedLink is returned if the magic link refers to a user that no longer exists.
	ErrOrphanedLink = fmt.Errorf("%w: user not found", ErrInvalidToken)

	// ErrEmailTaken is returned by repositories if an update would give a user
	// the email of another user.
	ErrEmailTaken = errors.New("email already in use")

	// ErrInvalidEmail is returned if an email address is not valid.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrMisconfigured is returned by email senders missing required credentials.
	ErrMisconfigured = errors.New("email sender misconfigured")

	// ErrDelivery is returned if a magic link could not be delivered.
	ErrDelivery = errors.New("email delivery failed")

	// ErrInvalidSession is returned if a session value cannot be decoded or verified.
	ErrInvalidSession = errors.New("invalid session")
)
