package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strings"
	"time"

	"github.com/joho/godotenv" // godotenv loads an optional .env file into the environment
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required variables are enforced by must();
// the rest fall back to defaults suitable for local development.
type Config struct {
	Env         string // application environment (e.g. "dev", "prod")
	Port        string // HTTP port to listen on
	StoreDriver string // "mysql" or "memory"
	DB          DBConfig

	// CIDR ranges of reverse proxies whose X-Forwarded-For is believed.
	// Empty means the socket address identifies the client.
	TrustedProxies []string

	JWTSecret      string // secret used to sign JWTs and password fingerprints
	JWTIssuer      string // iss claim written to and required from every token
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	CookieSecure   bool   // Secure attribute of the refresh cookie

	OTPTTL            time.Duration // lifetime of a one-time passcode
	RequestTimeout    time.Duration // deadline applied to store calls of one request
	AllowPendingLogin bool          // let pending accounts log in

	Mail  MailConfig
	Audit AuditConfig
}

// DBConfig holds the MySQL connection and pool settings.
type DBConfig struct {
	User            string
	Pass            string // optional
	Host            string
	Port            string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Timeout         time.Duration // dial, read and write timeout
}

// MailConfig selects and configures the outgoing mail transport.
type MailConfig struct {
	Driver   string // "smtp" or "log"
	Host     string
	Port     string
	User     string
	Password string
	From     string
	Timeout  time.Duration
}

// AuditConfig configures publication of account audit records over AMQP.
// An empty URL disables the publisher; records are still logged.
type AuditConfig struct {
	AMQPURL         string
	Queue           string
	ConsumerEnabled bool
	LogPath         string
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when present.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}

	cfg := Config{
		Env:         envStr("APP_ENV", "dev"),
		Port:        envStr("APP_PORT", "8080"),
		StoreDriver: envStr("STORE_DRIVER", "mysql"),
		DB: DBConfig{
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			Timeout:         envDur("DB_TIMEOUT", 5*time.Second),
		},
		TrustedProxies: envList("TRUSTED_PROXIES"),

		JWTSecret:      must("JWT_SECRET"),
		JWTIssuer:      envStr("JWT_ISSUER", "blog-platform"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 30),
		BcryptCost:     envInt("BCRYPT_COST", 12),
		CookieSecure:   envBool("COOKIE_SECURE", true),

		OTPTTL:            envDur("OTP_TTL", 10*time.Minute),
		RequestTimeout:    envDur("REQUEST_TIMEOUT", 5*time.Second),
		AllowPendingLogin: envBool("ALLOW_PENDING_LOGIN", false),

		Mail: MailConfig{
			Driver:   envStr("MAIL_DRIVER", "log"),
			Host:     os.Getenv("MAIL_HOST"),
			Port:     envStr("MAIL_PORT", "587"),
			User:     os.Getenv("MAIL_USER"),
			Password: os.Getenv("MAIL_PASSWORD"),
			From:     envStr("MAIL_FROM", "no-reply@localhost"),
			Timeout:  envDur("MAIL_TIMEOUT", 10*time.Second),
		},
		Audit: AuditConfig{
			AMQPURL:         firstEnv("RABBITMQ_URL", "AMQP_URL"),
			Queue:           envStr("AUDIT_QUEUE", "account.audit"),
			ConsumerEnabled: envBool("AUDIT_CONSUMER_ENABLED", false),
			LogPath:         envStr("AUDIT_LOG_PATH", "logs/audit.log"),
		},
	}

	if cfg.StoreDriver == "mysql" {
		cfg.DB.User = must("DB_USER")
		cfg.DB.Pass = os.Getenv("DB_PASS") // empty allowed
		cfg.DB.Host = must("DB_HOST")
		cfg.DB.Port = must("DB_PORT")
		cfg.DB.Name = must("DB_NAME")
	}
	if cfg.Mail.Driver == "smtp" {
		cfg.Mail.Host = must("MAIL_HOST")
	}
	return cfg
}

// AccessTTL returns the access token lifetime.
func (c Config) AccessTTL() time.Duration { return time.Duration(c.AccessTTLMin) * time.Minute }

// RefreshTTL returns the refresh token lifetime.
func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
