package magiclink

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Controller binds an Authenticator to the session and page of a single render.
// Create one per render with Authenticator.NewController. A Controller is not
// safe for concurrent use.
type Controller struct {
	a     *Authenticator
	store SessionStore
	page  Page

	// user is the session user, nil if anonymous.
	user *User

	log logrus.FieldLogger
}

// NewController creates a Controller for the current render, and reconciles
// the session with the repository: a session user that no longer exists
// (or a session that cannot be decoded) is dropped, otherwise the session
// is overwritten with the stored user.
func (a *Authenticator) NewController(ctx context.Context, store SessionStore, page Page) (*Controller, error) {
	c := &Controller{a: a, store: store, page: page, log: a.log}
	if err := c.syncUser(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// User returns a copy of the signed in user, nil if anonymous.
func (c *Controller) User() *User {
	if c.user == nil {
		return nil
	}
	return c.user.clone()
}

// Authenticate sends a new magic link to the given email, creating the user on first use.
// The session is not changed, the user is signed in when the link is opened.
// The email is normalized with NormalizeEmail.
// ErrInvalidEmail is returned for malformed emails, and an error wrapping
// ErrDelivery if the email could not be sent.
func (c *Controller) Authenticate(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		c.page.Toast(LevelError, "Please enter a valid email address.")
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	if err := c.a.sendMagicLink(ctx, email); err != nil {
		c.log.WithError(err).WithField("email", email).Error("failed to send magic link")
		c.page.Toast(LevelError, "Could not send the magic link. Please try again later.")
		return err
	}

	c.page.Toast(LevelSuccess, fmt.Sprintf("A magic link has been sent to %s. Please check your inbox.", email))
	return nil
}

// SignIn signs in with the token of the page, if there is any.
// Rejected tokens are reported to the user only. The returned error
// signals repository failures, the user gets a generic error toast then.
func (c *Controller) SignIn(ctx context.Context) error {
	token := c.page.Token()
	if token == "" {
		return nil
	}

	user, err := c.a.consume(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			c.page.ClearToken()
			c.page.Toast(LevelError, "Could not sign in. Please try again later.")
			return err
		}
		c.page.ClearToken()
		c.page.Toast(LevelError, "Invalid or expired magic link.")
		return nil
	}

	if err := c.setUser(user); err != nil {
		return err
	}
	c.page.ClearToken()
	c.page.Toast(LevelSuccess, "You are now signed in.")
	return nil
}

// SignOut removes the user from the session.
func (c *Controller) SignOut() {
	c.removeUser()
	c.page.Toast(LevelSuccess, "You are now signed out.")
}

// UpdateUser applies upd to the signed in user and stores it.
// It's a no-op if anonymous. A new email is normalized with NormalizeEmail,
// and ErrEmailTaken is returned (wrapped) if another user has it.
func (c *Controller) UpdateUser(ctx context.Context, upd UserUpdate) error {
	if c.user == nil {
		return nil
	}
	if upd.Email != nil {
		email := NormalizeEmail(*upd.Email)
		if err := validate.Var(email, "required,email"); err != nil {
			c.page.Toast(LevelError, "Please enter a valid email address.")
			return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
		}
		upd.Email = &email
	}

	updated, err := c.a.users.UpdateUser(ctx, upd.apply(c.user))
	if errors.Is(err, ErrNotFound) {
		c.log.WithField("user_id", c.user.ID).Warn("session user disappeared during update")
		c.removeUser()
		c.page.Toast(LevelError, "User not found.")
		return nil
	}
	if errors.Is(err, ErrEmailTaken) {
		c.page.Toast(LevelError, "This email address is already used by another account.")
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err != nil {
		c.page.Toast(LevelError, "Could not update the user. Please try again later.")
		return fmt.Errorf("failed to update user: %w", err)
	}

	if err := c.setUser(updated); err != nil {
		return err
	}
	c.page.Toast(LevelSuccess, "User updated successfully!")
	return nil
}

// DeleteUser deletes the signed in user and signs out.
// It's a no-op if anonymous.
func (c *Controller) DeleteUser(ctx context.Context) error {
	if c.user == nil {
		return nil
	}

	if _, err := c.a.users.DeleteUser(ctx, c.user); err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.page.Toast(LevelError, "Could not delete the user. Please try again later.")
			return fmt.Errorf("failed to delete user: %w", err)
		}
		c.log.WithField("user_id", c.user.ID).Info("session user already deleted")
	}

	c.removeUser()
	c.page.Toast(LevelSuccess, "User deleted successfully!")
	c.page.Rerun()
	return nil
}

// syncUser refreshes the session user from the repository.
func (c *Controller) syncUser(ctx context.Context) error {
	value, ok := c.store.Get(c.a.cfg.SessionKey)
	if !ok {
		return nil
	}

	sessUser, err := c.a.codec.Decode(value, c.a.now())
	if err != nil {
		c.log.WithError(err).Info("dropping undecodable session")
		c.removeUser()
		return nil
	}

	user, err := c.a.users.UserByID(ctx, sessUser.ID)
	if errors.Is(err, ErrNotFound) {
		c.log.WithField("user_id", sessUser.ID).Info("dropping session of missing user")
		c.removeUser()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session user: %w", err)
	}

	return c.setUser(user)
}

// setUser stores user in the session.
func (c *Controller) setUser(user *User) error {
	value, err := c.a.codec.Encode(user, c.a.now())
	if err != nil {
		return err
	}
	c.store.Set(c.a.cfg.SessionKey, value)
	c.user = user.clone()
	return nil
}

// removeUser removes the user from the session.
func (c *Controller) removeUser() {
	c.store.Remove(c.a.cfg.SessionKey)
	c.user = nil
}
