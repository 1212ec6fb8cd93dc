package dbconfig

import (
	"net"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds Postgres connection settings shared by the gateway snapshot
// store and the maintenance tools.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// ApplicationName tags connections in pg_stat_activity.
	ApplicationName string
	ConnectTimeout  time.Duration
	MaxOpenConns    int
}

// NewConfigFromEnv reads DB_* environment variables (with defaults) for the
// named application.
func NewConfigFromEnv(application string) Config {
	return Config{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", "postgres"),
		Database:        getEnv("DB_NAME", "activebits"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		ApplicationName: application,
		ConnectTimeout:  getEnvAsDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
	}
}

// DSN returns the Postgres connection URL. Credentials are escaped, so
// passwords may contain URL delimiters.
func (c Config) DSN() string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.ApplicationName != "" {
		q.Set("application_name", c.ApplicationName)
	}
	if c.ConnectTimeout > 0 {
		// connect_timeout is whole seconds; round up so a sub-second value
		// does not turn into "wait forever".
		q.Set("connect_timeout", strconv.Itoa(int((c.ConnectTimeout+time.Second-1)/time.Second)))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
