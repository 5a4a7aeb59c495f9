package magiclink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTokenBytes is the number of random bytes of magic link tokens.
	// The actual token is base64, will be roughly 4/3 times longer.
	DefaultTokenBytes = 24

	// DefaultLinkExpiration is the default for Config.LinkExpiration.
	DefaultLinkExpiration = 15 * time.Minute

	// DefaultValidationMemoTTL is the default for Config.ValidationMemoTTL.
	DefaultValidationMemoTTL = time.Second

	// DefaultSessionKey is the default for Config.SessionKey.
	DefaultSessionKey = "user"

	// DefaultSessionTTL is the default for Config.SessionTTL.
	DefaultSessionTTL = 30 * 24 * time.Hour

	// DefaultSiteName is the default for Config.SiteName.
	DefaultSiteName = "Magic Link"
)

// Config holds Authenticator configuration.
// BaseURL and SessionSecret are required, other fields have defaults,
// see constants for default values.
type Config struct {
	// BaseURL of the application. Magic links point to BaseURL?token=<token>.
	BaseURL string

	// SessionSecret is the key signing session values.
	SessionSecret string

	// SessionKey is the SessionStore key holding the session user.
	SessionKey string

	// SessionTTL tells how long a stored session remains valid without renders.
	// Every render refreshes it.
	SessionTTL time.Duration

	// LinkExpiration tells how long a magic link remains valid.
	LinkExpiration time.Duration

	// ValidationMemoTTL tells how long the outcome of a sign-in is remembered per token.
	ValidationMemoTTL time.Duration

	// Memo remembering sign-in outcomes, an in-process memo if nil.
	Memo Memo

	// EmailSubject is the subject of magic link emails.
	EmailSubject string

	// EmailTemplate is the text/template of magic link emails, executed with EmailParams.
	EmailTemplate string

	// SiteName and SenderName are passed to EmailTemplate.
	SiteName   string
	SenderName string

	// Logger to log diagnostics to, logrus.StandardLogger() if nil.
	Logger logrus.FieldLogger
}

// validate validates email addresses.
var validate = validator.New()

// Authenticator issues and consumes magic links, and creates the per-render Controllers.
// It's safe to use it concurrently from multiple goroutines.
type Authenticator struct {
	users UserRepository
	links MagicLinkRepository

	// sendEmail is a function to send emails.
	sendEmail SendEmailFunc

	codec      *SessionCodec
	emailTempl *template.Template
	memo       Memo

	// group collapses concurrent sign-ins with the same token.
	group singleflight.Group

	log logrus.FieldLogger
	now func() time.Time

	// cfg to use
	cfg Config
}

// NewAuthenticator creates a new Authenticator.
// This function panics if users, links or sendEmail are nil, if cfg.BaseURL or
// cfg.SessionSecret are empty, or if cfg.EmailTemplate is not a valid template.
func NewAuthenticator(
	users UserRepository,
	links MagicLinkRepository,
	sendEmail SendEmailFunc,
	cfg Config,
) *Authenticator {

	if users == nil {
		panic("users must be provided")
	}
	if links == nil {
		panic("links must be provided")
	}
	if sendEmail == nil {
		panic("sendEmail must be provided")
	}
	if cfg.BaseURL == "" {
		panic("BaseURL must be provided")
	}
	if cfg.SessionSecret == "" {
		panic("SessionSecret must be provided")
	}

	if cfg.SessionKey == "" {
		cfg.SessionKey = DefaultSessionKey
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.LinkExpiration == 0 {
		cfg.LinkExpiration = DefaultLinkExpiration
	}
	if cfg.ValidationMemoTTL == 0 {
		cfg.ValidationMemoTTL = DefaultValidationMemoTTL
	}
	if cfg.EmailSubject == "" {
		cfg.EmailSubject = DefaultEmailSubject
	}
	if cfg.EmailTemplate == "" {
		cfg.EmailTemplate = DefaultEmailTemplate
	}
	if cfg.SiteName == "" {
		cfg.SiteName = DefaultSiteName
	}
	if cfg.SenderName == "" {
		cfg.SenderName = cfg.SiteName
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	a := &Authenticator{
		users:      users,
		links:      links,
		sendEmail:  sendEmail,
		codec:      NewSessionCodec(cfg.SessionSecret, cfg.SessionTTL),
		emailTempl: template.Must(template.New("email").Parse(cfg.EmailTemplate)),
		memo:       cfg.Memo,
		log:        cfg.Logger,
		now:        time.Now,
		cfg:        cfg,
	}
	if a.memo == nil {
		a.memo = newMemoryMemo(func() time.Time { return a.now() })
	}
	return a
}

// LinkURL returns the URL of the magic link with the given token.
func (a *Authenticator) LinkURL(token string) string {
	return a.cfg.BaseURL + "?token=" + token
}

// sendMagicLink issues a new magic link for the user with the given email
// (creating the user if needed), and emails it.
func (a *Authenticator) sendMagicLink(ctx context.Context, email string) error {
	user, err := CreateOrRetrieveUser(ctx, a.users, email)
	if err != nil {
		return fmt.Errorf("failed to retrieve user: %w", err)
	}

	link, err := a.links.InsertMagicLink(ctx, user.ID, a.cfg.LinkExpiration)
	if err != nil {
		return fmt.Errorf("failed to insert magic link: %w", err)
	}

	params := &EmailParams{
		Email:          email,
		SiteName:       a.cfg.SiteName,
		Link:           a.LinkURL(link.Token),
		LinkExpiration: a.cfg.LinkExpiration,
		SenderName:     a.cfg.SenderName,
	}
	body := &bytes.Buffer{}
	if err := a.emailTempl.Execute(body, params); err != nil {
		return fmt.Errorf("failed to execute email template: %w", err)
	}

	if err := a.sendEmail(ctx, email, a.cfg.EmailSubject, body.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	a.log.WithFields(logrus.Fields{
		"email":   email,
		"user_id": user.ID,
		"token":   tokenPrefix(link.Token),
	}).Info("magic link sent")
	return nil
}

// consume signs in with token: validates it, marks it used and marks its user verified.
// Outcomes are remembered for ValidationMemoTTL, so repeating it with the same
// token in that window reports the same result.
// Rejections are reported with an error wrapping ErrInvalidToken.
func (a *Authenticator) consume(ctx context.Context, token string) (*User, error) {
	v, err, _ := a.group.Do(token, func() (any, error) {
		if o, ok, err := a.memo.Get(ctx, token); err != nil {
			a.log.WithError(err).Warn("failed to read validation memo")
		} else if ok {
			return o, nil
		}

		var o Outcome
		user, err := a.verify(ctx, token)
		switch {
		case err == nil:
			o.User = user
		case errors.Is(err, ErrInvalidToken):
			o.Reason = reasonOf(err)
		default:
			return nil, err
		}

		if err := a.memo.Put(ctx, token, o, a.cfg.ValidationMemoTTL); err != nil {
			a.log.WithError(err).Warn("failed to write validation memo")
		}
		return o, nil
	})
	if err != nil {
		return nil, err
	}

	o := v.(Outcome)
	if o.User != nil {
		return o.User.clone(), nil
	}
	return nil, o.Err()
}

// verify performs a sign-in with token, without memoization.
func (a *Authenticator) verify(ctx context.Context, token string) (*User, error) {
	log := a.log.WithField("token", tokenPrefix(token))
	now := a.now()

	link, err := a.links.MagicLinkByToken(ctx, token)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to load magic link: %w", err)
	}
	if err := ValidateMagicLink(link, now); err != nil {
		log.WithField("reason", reasonOf(err)).Info("magic link rejected")
		return nil, err
	}

	log = log.WithField("user_id", link.UserID)

	user, err := a.users.UserByID(ctx, link.UserID)
	if errors.Is(err, ErrNotFound) {
		log.Warn("magic link refers to a missing user")
		return nil, ErrOrphanedLink
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if _, err := a.links.ConsumeMagicLink(ctx, token, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Info("magic link consumed concurrently")
			return nil, ErrAlreadyUsed
		}
		return nil, fmt.Errorf("failed to consume magic link: %w", err)
	}

	user.IsVerified = true
	updated, err := a.users.UpdateUser(ctx, user)
	if errors.Is(err, ErrNotFound) {
		log.Warn("user deleted while consuming magic link")
		return nil, ErrOrphanedLink
	}
	if err != nil {
		log.WithError(err).Warn("magic link consumed but user could not be verified")
		return nil, fmt.Errorf("failed to verify user: %w", err)
	}

	log.Info("magic link consumed")
	return updated, nil
}
