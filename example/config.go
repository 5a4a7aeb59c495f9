package main

import (
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// config holds the example app configuration loaded from environment variables,
// with defaults for local development.
type config struct {
	Env     string // development, production
	Port    string
	BaseURL string

	// MongoDB
	MongoURI       string // overrides the credentials below if set
	MongoUsername  string
	MongoPassword  string
	MongoHost      string
	DBName         string
	UsersColl      string
	MagicLinksColl string

	// Email
	MailProvider     string // mailjet, mailgun or log
	FromEmail        string
	MailjetAPIKey    string
	MailjetAPISecret string
	MailgunDomain    string
	MailgunAPIKey    string

	// Session
	SessionSecret string
	CookieDomain  string
	CookieSecure  bool
	SessionTTL    time.Duration

	LinkExpiration time.Duration

	// RedisAddr enables the shared validation memo if set.
	RedisAddr string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logrus.WithError(err).Warnf("invalid boolean for %s, using default %v", key, def)
			return def
		}
		return b
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logrus.WithError(err).Warnf("invalid duration for %s, using default %v", key, def)
			return def
		}
		return d
	}
	return def
}

// loadConfig loads configuration from environment variables.
func loadConfig() *config {
	return &config{
		Env:     getenv("APP_ENV", "development"),
		Port:    getenv("PORT", "8501"),
		BaseURL: getenv("BASE_URL", "http://localhost:8501/"),

		MongoURI:       getenv("MONGODB_URI", ""),
		MongoUsername:  getenv("MONGODB_USERNAME", ""),
		MongoPassword:  getenv("MONGODB_PASSWORD", ""),
		MongoHost:      getenv("MONGODB_HOST", ""),
		DBName:         getenv("DATABASE_NAME", "streamlit-magic-link"),
		UsersColl:      getenv("COLLECTION_NAME_USERS", "users"),
		MagicLinksColl: getenv("COLLECTION_NAME_MAGIC_LINKS", "magic-links"),

		MailProvider:     getenv("MAIL_PROVIDER", "mailjet"),
		FromEmail:        getenv("FROM_EMAIL", ""),
		MailjetAPIKey:    getenv("MAILJET_API_KEY", ""),
		MailjetAPISecret: getenv("MAILJET_API_SECRET", ""),
		MailgunDomain:    getenv("MAILGUN_DOMAIN", ""),
		MailgunAPIKey:    getenv("MAILGUN_API_KEY", ""),

		SessionSecret: getenv("SESSION_SECRET", "devsessionsecret"),
		CookieDomain:  getenv("COOKIE_DOMAIN", ""),
		CookieSecure:  getbool("COOKIE_SECURE", false),
		SessionTTL:    getdur("SESSION_TTL", 30*24*time.Hour),

		LinkExpiration: getdur("LINK_EXPIRATION", 15*time.Minute),

		RedisAddr: getenv("REDIS_ADDR", ""),
	}
}

// mongoURI returns the MongoDB connection string, "" if MongoDB is not configured.
func (c *config) mongoURI() string {
	if c.MongoURI != "" {
		return c.MongoURI
	}
	if c.MongoHost == "" {
		return ""
	}
	userinfo := url.UserPassword(c.MongoUsername, c.MongoPassword)
	return "mongodb+srv://" + userinfo.String() + "@" + c.MongoHost + "/?retryWrites=true&w=majority"
}
