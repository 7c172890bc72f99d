package config // package config loads application configuration from environment variables

import (
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"
	"time"

	"github.com/sirupsen/logrus" // fatal reporting before the service logger exists
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values are enforced by Load; optional
// ones fall back to defaults.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing

	LogLevel        string        // logrus level name
	CORSOrigins     []string      // allowed browser origins
	ShutdownTimeout time.Duration // grace period for in-flight requests

	AMQPURL string // RabbitMQ connection URL; empty disables publishing

	StripeSecretKey      string // server-side Stripe key; empty disables checkout
	StripePublishableKey string // key handed to browsers
	StripeWebhookSecret  string // signing secret for webhook payloads
	CheckoutSuccessURL   string
	CheckoutCancelURL    string
	Currency             string

	TicketSigningSecret string // HMAC key for ticket QR payloads

	PendingBookingTTL time.Duration // 0 disables the stale pending sweeper
	SweepInterval     time.Duration
	LimitedPercent    int           // availability "limited" threshold in percent
	AvailabilityTTL   time.Duration // lifetime of cached availability views
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),                 // environment (dev/test/prod)
		Port:         must("APP_PORT"),                // port to bind the HTTP server
		DBUser:       must("DB_USER"),                 // database user
		DBPass:       os.Getenv("DB_PASS"),            // database password (empty allowed)
		DBHost:       must("DB_HOST"),                 // database host
		DBPort:       must("DB_PORT"),                 // database port
		DBName:       must("DB_NAME"),                 // database name
		JWTSecret:    must("JWT_SECRET"),              // secret used for signing JWTs
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"), // TTL for access tokens in minutes
		BcryptCost:   mustInt("BCRYPT_COST"),          // bcrypt cost factor

		LogLevel:        envStr("LOG_LEVEL", "info"),
		CORSOrigins:     splitList(envStr("CORS_ALLOWED_ORIGINS", "*")),
		ShutdownTimeout: envDur("SHUTDOWN_TIMEOUT", 10*time.Second),

		AMQPURL: amqpURL(),

		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripePublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:   envStr("CHECKOUT_SUCCESS_URL", "http://localhost:5173/payment/success?session_id={CHECKOUT_SESSION_ID}"),
		CheckoutCancelURL:    envStr("CHECKOUT_CANCEL_URL", "http://localhost:5173/payment/cancel"),
		Currency:             strings.ToLower(envStr("CURRENCY", "usd")),

		TicketSigningSecret: envStr("TICKET_SIGNING_SECRET", os.Getenv("JWT_SECRET")),

		PendingBookingTTL: envDur("PENDING_BOOKING_TTL", 0),
		SweepInterval:     envDur("PENDING_SWEEP_INTERVAL", time.Minute),
		LimitedPercent:    envInt("AVAILABILITY_LIMITED_PERCENT", 10),
		AvailabilityTTL:   envDur("AVAILABILITY_CACHE_TTL", 30*time.Second),
	}
}

// IsProd reports whether the service runs in production.
func (c Config) IsProd() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logrus.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		logrus.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
