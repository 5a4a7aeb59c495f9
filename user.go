package magiclink

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// User represents a user that signs in with magic links.
// The session holds a copy of it, which is refreshed from the repository on every render.
type User struct {
	// ID of the user, assigned at creation. Never changes.
	ID string `bson:"id" json:"id"`

	// Email of the user, used as a secondary lookup key.
	// Stored normalized, see NormalizeEmail.
	Email string `bson:"email" json:"email"`

	// Name is optional.
	Name *string `bson:"name" json:"name"`

	// IsVerified is set the first time a magic link of the user is consumed.
	IsVerified bool `bson:"is_verified" json:"is_verified"`

	// IsPayedUser is maintained by the application, e.g. after a purchase.
	IsPayedUser bool `bson:"is_payed_user" json:"is_payed_user"`

	// AdditionalData is an opaque field the application may use freely.
	AdditionalData *string `bson:"additional_data" json:"additional_data"`
}

// NewUser returns a new, unverified user with a fresh ID.
func NewUser(email string) *User {
	return &User{
		ID:    uuid.NewString(),
		Email: email,
	}
}

// NormalizeEmail returns email trimmed and lowercased, the form users are stored and looked up by.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// clone returns a deep copy of u.
func (u *User) clone() *User {
	c := *u
	if u.Name != nil {
		name := *u.Name
		c.Name = &name
	}
	if u.AdditionalData != nil {
		data := *u.AdditionalData
		c.AdditionalData = &data
	}
	return &c
}

// UserUpdate holds the caller-settable fields of a User.
// Nil fields are left unchanged.
type UserUpdate struct {
	Email          *string
	Name           *string
	IsPayedUser    *bool
	AdditionalData *string
}

// apply merges the non-nil fields of upd over a copy of u.
func (upd UserUpdate) apply(u *User) *User {
	merged := u.clone()
	if upd.Email != nil {
		merged.Email = *upd.Email
	}
	if upd.Name != nil {
		name := *upd.Name
		merged.Name = &name
	}
	if upd.IsPayedUser != nil {
		merged.IsPayedUser = *upd.IsPayedUser
	}
	if upd.AdditionalData != nil {
		data := *upd.AdditionalData
		merged.AdditionalData = &data
	}
	return merged
}

// UserRepository stores users.
// Lookups return ErrNotFound if no matching user exists.
type UserRepository interface {
	// InsertUser inserts user unless a user with the same ID or email exists,
	// in which case the stored user is returned and nothing is inserted.
	InsertUser(ctx context.Context, user *User) (*User, error)

	// UserByID returns the user with the given ID.
	UserByID(ctx context.Context, id string) (*User, error)

	// UserByEmail returns the user with the given email.
	UserByEmail(ctx context.Context, email string) (*User, error)

	// UpdateUser replaces the user identified by user.ID, and returns the stored result.
	// ErrEmailTaken is returned if another user has user.Email.
	UpdateUser(ctx context.Context, user *User) (*User, error)

	// DeleteUser deletes the user identified by user.ID, and returns user.
	DeleteUser(ctx context.Context, user *User) (*User, error)
}

// CreateOrRetrieveUser returns the user with the given email,
// creating an unverified one if it does not exist yet.
func CreateOrRetrieveUser(ctx context.Context, users UserRepository, email string) (*User, error) {
	user, err := users.UserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return users.InsertUser(ctx, NewUser(email))
}
