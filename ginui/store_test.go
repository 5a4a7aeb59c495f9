package ginui

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestContext returns a gin context for req with a response recorder.
func newTestContext(req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

// responseCookie returns the named cookie set by the response, nil if not set.
func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == name {
			found = ck
		}
	}
	return found
}

func TestCookieStore(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "a", Value: "1"})
	c, w := newTestContext(req)

	s := NewCookieStore(c, CookieConfig{Domain: "example.com", Secure: true, MaxAge: time.Hour})

	v, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = s.Get("b")
	assert.False(t, ok)

	s.Set("a", "2")
	v, ok = s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	ck := responseCookie(w, "a")
	require.NotNil(t, ck)
	assert.Equal(t, "2", ck.Value)
	assert.Equal(t, 3600, ck.MaxAge)
	assert.Equal(t, "/", ck.Path)
	assert.Equal(t, "example.com", ck.Domain)
	assert.True(t, ck.Secure)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)

	s.Remove("a")
	_, ok = s.Get("a")
	assert.False(t, ok)
	ck = responseCookie(w, "a")
	require.NotNil(t, ck)
	assert.Equal(t, "", ck.Value)
	assert.True(t, ck.MaxAge < 0)
}

func TestCookieStore_SetFor(t *testing.T) {
	c, w := newTestContext(httptest.NewRequest(http.MethodGet, "/", nil))
	s := NewCookieStore(c, CookieConfig{})

	s.SetFor("f", "v", 90*time.Second)
	v, ok := s.Get("f")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	ck := responseCookie(w, "f")
	require.NotNil(t, ck)
	assert.Equal(t, 90, ck.MaxAge)
	assert.True(t, ck.HttpOnly)
}

func TestCookieConfigMaxAge(t *testing.T) {
	assert.Equal(t, int(DefaultCookieMaxAge.Seconds()), CookieConfig{}.maxAge())
	assert.Equal(t, 60, CookieConfig{MaxAge: time.Minute}.maxAge())
}
