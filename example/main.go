// Command example is a single page web app signing users in with magic links.
package main

import (
	"context"
	"html/template"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/icza/magiclink"
	"github.com/icza/magiclink/ginui"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to load .env")
	}
	cfg := loadConfig()
	log := newLogger(cfg.Env)

	users, links, closeStore := openStore(cfg, log)
	defer closeStore()

	var memo magiclink.Memo
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		memo = magiclink.NewRedisMemo(rdb, "")
	}

	auth := magiclink.NewAuthenticator(users, links, newSendEmail(cfg, log), magiclink.Config{
		BaseURL:        cfg.BaseURL,
		SessionSecret:  cfg.SessionSecret,
		SessionTTL:     cfg.SessionTTL,
		LinkExpiration: cfg.LinkExpiration,
		Memo:           memo,
		SiteName:       "Example Magic Link App",
		Logger:         log,
	})

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	cookies := ginui.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure, MaxAge: cfg.SessionTTL}
	r.GET("/", ginui.Handler(auth, cookies, log, renderPage))
	r.POST("/", ginui.Handler(auth, cookies, log, handleAction(log)))

	log.WithField("port", cfg.Port).Info("starting server")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

// newLogger creates a logrus logger: human-readable in development, JSON otherwise.
func newLogger(env string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if env == "development" {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// openStore connects to MongoDB if configured, else falls back to a MemoryStore.
func openStore(cfg *config, log *logrus.Logger) (magiclink.UserRepository, magiclink.MagicLinkRepository, func()) {
	uri := cfg.mongoURI()
	if uri == "" {
		log.Warn("MongoDB not configured, keeping users in memory")
		store := magiclink.NewMemoryStore()
		return store, store, func() {}
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)))
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		log.WithError(err).Fatal("failed to ping MongoDB")
	}

	store := magiclink.NewMongoStore(client, magiclink.MongoConfig{
		DBName:                   cfg.DBName,
		UsersCollectionName:      cfg.UsersColl,
		MagicLinksCollectionName: cfg.MagicLinksColl,
	})
	if err := store.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Fatal("failed to create indexes")
	}

	return store, store, func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("failed to disconnect from MongoDB")
		}
	}
}

// newSendEmail returns the email sender selected by cfg.MailProvider.
func newSendEmail(cfg *config, log *logrus.Logger) magiclink.SendEmailFunc {
	switch cfg.MailProvider {
	case "mailgun":
		return magiclink.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.FromEmail).Send
	case "log":
		return func(ctx context.Context, to, subject, body string) error {
			log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info(body)
			return nil
		}
	default:
		return magiclink.NewMailjet(cfg.MailjetAPIKey, cfg.MailjetAPISecret, cfg.FromEmail).Send
	}
}

// handleAction performs the action posted by the page forms, then reruns the page.
func handleAction(log logrus.FieldLogger) ginui.HandlerFunc {
	return func(c *gin.Context, ctrl *magiclink.Controller, page *ginui.Page) {
		ctx := c.Request.Context()
		var err error

		switch c.PostForm("action") {
		case "login":
			err = ctrl.Authenticate(ctx, c.PostForm("email"))
		case "logout":
			ctrl.SignOut()
		case "update":
			email, name, data := c.PostForm("email"), c.PostForm("name"), c.PostForm("additional_data")
			payed := c.PostForm("is_payed_user") == "on"
			err = ctrl.UpdateUser(ctx, magiclink.UserUpdate{
				Email:          &email,
				Name:           &name,
				IsPayedUser:    &payed,
				AdditionalData: &data,
			})
		case "delete":
			err = ctrl.DeleteUser(ctx)
		}
		if err != nil {
			// The user has been notified by a toast.
			log.WithError(err).Info("action failed")
		}

		page.Rerun()
	}
}

func renderPage(c *gin.Context, ctrl *magiclink.Controller, page *ginui.Page) {
	data := struct {
		User   *magiclink.User
		Toasts []ginui.Toast
	}{ctrl.User(), page.Toasts()}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := pageTempl.Execute(c.Writer, data); err != nil {
		c.Error(err)
	}
}

var pageTempl = template.Must(template.New("page").Funcs(template.FuncMap{
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}).Parse(`<!DOCTYPE html>
<html>
<head><title>Example Magic Link App</title></head>
<body>
<h1>Example Magic Link App!</h1>
{{range .Toasts}}<p class="toast {{.Level}}">{{.Msg}}</p>
{{end}}
{{if not .User}}
<form method="post">
  <input type="hidden" name="action" value="login">
  <label>Email <input type="email" name="email" placeholder="Enter your email"></label>
  <button>Login or Sign up</button>
</form>
{{else}}
<p>Hello, {{.User.Email}}!</p>
<form method="post">
  <input type="hidden" name="action" value="logout">
  <button>Sign out</button>
</form>
<form method="post">
  <input type="hidden" name="action" value="update">
  <label>Email <input type="email" name="email" value="{{.User.Email}}"></label>
  <label>Name <input name="name" value="{{deref .User.Name}}"></label>
  <label><input type="checkbox" name="is_payed_user"{{if .User.IsPayedUser}} checked{{end}}> Is payed user</label>
  <label>Additional data <input name="additional_data" value="{{deref .User.AdditionalData}}"></label>
  <button>Update user</button>
</form>
<form method="post">
  <input type="hidden" name="action" value="delete">
  <button>Delete user</button>
</form>
{{end}}
</body>
</html>
`))
