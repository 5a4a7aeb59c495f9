package ginui

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/icza/magiclink"
)

// HandlerFunc handles a request with the Controller of the render.
type HandlerFunc func(c *gin.Context, ctrl *magiclink.Controller, page *Page)

// Handler returns a gin handler which creates the Controller of the request
// (reconciling the session), signs in with the token of the request if any,
// then calls fn unless a redirect is already due.
// A failed sign-in is logged; the user is notified by the toast of the Controller.
// fn must not write the response if it called page.Rerun().
func Handler(a *magiclink.Authenticator, cookies CookieConfig, log logrus.FieldLogger, fn HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		store := NewCookieStore(c, cookies)
		page := NewPage(c, store)

		ctrl, err := a.NewController(ctx, store, page)
		if err != nil {
			log.WithError(err).Error("failed to create controller")
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if err := ctrl.SignIn(ctx); err != nil {
			log.WithError(err).Error("failed to sign in")
		}
		if page.Finish() {
			return
		}

		fn(c, ctrl, page)

		page.Finish()
	}
}
