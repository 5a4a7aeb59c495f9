package ginui

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/icza/magiclink"
)

const (
	// FlashCookieName is the cookie carrying toasts over a redirect.
	FlashCookieName = "flash"

	// FlashMaxAge is the lifetime of the flash cookie, enough to follow the redirect.
	FlashMaxAge = time.Minute
)

// Toast is a notification shown to the user.
type Toast struct {
	Level magiclink.Level `json:"level"`
	Msg   string          `json:"msg"`
}

// Page implements magiclink.Page for a gin request.
// Clearing the token or requesting a rerun turns the response into a redirect
// to the same path without query parameters, see Finish.
type Page struct {
	c       *gin.Context
	cookies *CookieStore

	toasts []Toast
	clear  bool
	rerun  bool
}

// NewPage creates a Page for the request of c, picking up toasts flashed by the previous response.
func NewPage(c *gin.Context, cookies *CookieStore) *Page {
	p := &Page{c: c, cookies: cookies}
	if v, ok := cookies.Get(FlashCookieName); ok {
		var flashed []Toast
		if b, err := base64.RawURLEncoding.DecodeString(v); err == nil && json.Unmarshal(b, &flashed) == nil {
			p.toasts = flashed
		}
		cookies.Remove(FlashCookieName)
	}
	return p
}

// Token implements magiclink.Page.
func (p *Page) Token() string {
	if p.clear {
		return ""
	}
	return p.c.Query("token")
}

// ClearToken implements magiclink.Page.
func (p *Page) ClearToken() { p.clear = true }

// Toast implements magiclink.Page.
func (p *Page) Toast(level magiclink.Level, msg string) {
	p.toasts = append(p.toasts, Toast{Level: level, Msg: msg})
}

// Rerun implements magiclink.Page.
func (p *Page) Rerun() { p.rerun = true }

// Toasts returns the toasts to show.
func (p *Page) Toasts() []Toast { return p.toasts }

// Finish redirects if the token was cleared or a rerun was requested,
// flashing pending toasts to the next request. It reports whether it redirected;
// if not, the caller is expected to render the page.
func (p *Page) Finish() bool {
	if !p.clear && !p.rerun {
		return false
	}
	if len(p.toasts) > 0 {
		if b, err := json.Marshal(p.toasts); err == nil {
			p.cookies.SetFor(FlashCookieName, base64.RawURLEncoding.EncodeToString(b), FlashMaxAge)
		}
	}
	p.c.Redirect(http.StatusSeeOther, p.c.Request.URL.Path)
	return true
}
