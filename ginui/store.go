// Package ginui binds magiclink Controllers to gin requests:
// the session lives in a cookie, toasts survive redirects in a flash cookie.
package ginui

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultCookieMaxAge is the default for CookieConfig.MaxAge.
const DefaultCookieMaxAge = 30 * 24 * time.Hour

// CookieConfig tells how cookies are set.
type CookieConfig struct {
	Domain string
	Secure bool

	// MaxAge of persistent cookies, DefaultCookieMaxAge if 0.
	MaxAge time.Duration
}

func (cc CookieConfig) maxAge() int {
	if cc.MaxAge == 0 {
		return int(DefaultCookieMaxAge.Seconds())
	}
	return int(cc.MaxAge.Seconds())
}

// CookieStore implements magiclink.SessionStore with cookies of a gin request.
// Values set during the request are visible to later Gets of the same request.
type CookieStore struct {
	c   *gin.Context
	cfg CookieConfig

	// changed holds values set (non-nil) or removed (nil) during this request.
	changed map[string]*string
}

// NewCookieStore creates a CookieStore for the request of c.
func NewCookieStore(c *gin.Context, cfg CookieConfig) *CookieStore {
	return &CookieStore{c: c, cfg: cfg, changed: map[string]*string{}}
}

// Get implements magiclink.SessionStore.
func (s *CookieStore) Get(key string) (string, bool) {
	if v, ok := s.changed[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	v, err := s.c.Cookie(key)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// Set implements magiclink.SessionStore.
func (s *CookieStore) Set(key, value string) {
	s.setCookie(key, value, s.cfg.maxAge())
	s.changed[key] = &value
}

// SetFor sets a cookie living for maxAge, e.g. a value only needed by the next request.
func (s *CookieStore) SetFor(key, value string, maxAge time.Duration) {
	s.setCookie(key, value, int(maxAge.Seconds()))
	s.changed[key] = &value
}

// Remove implements magiclink.SessionStore.
func (s *CookieStore) Remove(key string) {
	s.setCookie(key, "", -1)
	s.changed[key] = nil
}

func (s *CookieStore) setCookie(key, value string, maxAge int) {
	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(key, value, maxAge, "/", s.cfg.Domain, s.cfg.Secure, true)
}
