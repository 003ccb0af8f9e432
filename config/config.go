package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration. It is loaded once at startup and
// handed to the builders; nothing reads the environment after Load returns.
type Config struct {
	Env            string
	ServiceName    string
	Host           string
	Port           string
	PublicBaseURL  string
	BodyLimitBytes int
	AllowedOrigins string
	LogLevel       string

	RateLimitMax    int
	RateLimitWindow time.Duration

	Idempotency IdempotencyConfig
	Datastore   DatastoreConfig
	Cache       CacheConfig
	Events      EventsConfig
	Outbox      OutboxConfig
	Auth        AuthConfig
}

type IdempotencyConfig struct {
	Header string
	TTL    time.Duration

	JanitorInterval time.Duration
	JanitorBatch    int
}

type DatastoreConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string

	PoolMax           int
	PoolIdle          time.Duration
	ConnectTimeout    time.Duration
	QueryTimeout      time.Duration
	ConnectMaxRetries int
	ConnectRetryDelay time.Duration
}

// DSN builds a libpq style connection string unless URL is set.
func (d DatastoreConfig) DSN() string {
	if strings.TrimSpace(d.URL) != "" {
		return d.URL
	}
	timeout := int(d.ConnectTimeout / time.Second)
	if timeout <= 0 {
		timeout = 5
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode, timeout)
}

type CacheConfig struct {
	Enabled    bool
	URL        string
	Host       string
	Port       string
	Password   string
	TLS        bool
	DefaultTTL time.Duration
}

type EventsConfig struct {
	Enabled     bool
	ClientID    string
	Brokers     []string
	TopicPrefix string
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
	Grace        time.Duration
}

// APIKey is one configured service credential. Hash is a bcrypt hash of the
// secret the caller presents.
type APIKey struct {
	ID    string
	Hash  string
	Roles []string
}

type AuthConfig struct {
	Enabled       bool
	JWTSecret     string
	APIKeys       []APIKey
	APIKeyHeader  string
	SessionHeader string
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	env := envString("APP_ENV", "development")
	apiKeys, err := parseAPIKeys(os.Getenv("AUTH_API_KEYS"))
	if err != nil {
		return Config{}, err
	}

	bodyLimit := envInt("BODY_LIMIT_BYTES", 0)
	if bodyLimit <= 0 {
		bodyLimit = envInt("BODY_LIMIT_MB", 4) * 1024 * 1024
	}

	port := envString("PORT", "8080")
	cfg := Config{
		Env:            env,
		ServiceName:    envString("SERVICE_NAME", "virtualbank-gateway"),
		Host:           envString("HOST", "0.0.0.0"),
		Port:           port,
		PublicBaseURL:  strings.TrimRight(envString("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		BodyLimitBytes: bodyLimit,
		AllowedOrigins: envString("ALLOWED_ORIGINS", "*"),
		LogLevel:       envString("LOG_LEVEL", defaultLogLevel(env)),

		RateLimitMax:    envInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: envSeconds("RATE_LIMIT_WINDOW_SECONDS", 60),

		Idempotency: IdempotencyConfig{
			Header: envString("IDEMPOTENCY_HEADER", "Idempotency-Key"),
			TTL:    envSeconds("IDEMPOTENCY_TTL_SECONDS", 600),

			JanitorInterval: envSeconds("IDEMPOTENCY_JANITOR_INTERVAL_SECONDS", 60),
			JanitorBatch:    envInt("IDEMPOTENCY_JANITOR_BATCH", 500),
		},
		Datastore: DatastoreConfig{
			URL:               os.Getenv("DATASTORE_URL"),
			Host:              envString("DATASTORE_HOST", "localhost"),
			Port:              envString("DATASTORE_PORT", "5432"),
			User:              envString("DATASTORE_USER", "vb_app"),
			Password:          envString("DATASTORE_PASSWORD", "vb_app_password"),
			Database:          envString("DATASTORE_DATABASE", "virtualbank"),
			SSLMode:           envString("DATASTORE_SSL_MODE", "disable"),
			PoolMax:           envInt("DATASTORE_POOL_MAX", 10),
			PoolIdle:          envMillis("DATASTORE_POOL_IDLE_MS", 10000),
			ConnectTimeout:    envMillis("DATASTORE_POOL_CONNECTION_TIMEOUT_MS", 5000),
			QueryTimeout:      envMillis("DATASTORE_QUERY_TIMEOUT_MS", 10000),
			ConnectMaxRetries: envInt("DATASTORE_CONNECT_MAX_RETRIES", 5),
			ConnectRetryDelay: envMillis("DATASTORE_CONNECT_RETRY_DELAY_MS", 2000),
		},
		Cache: CacheConfig{
			Enabled:    envBool("CACHE_ENABLED", true),
			URL:        os.Getenv("CACHE_URL"),
			Host:       envString("CACHE_HOST", "localhost"),
			Port:       envString("CACHE_PORT", "6379"),
			Password:   os.Getenv("CACHE_PASSWORD"),
			TLS:        envBool("CACHE_TLS", false),
			DefaultTTL: envSeconds("CACHE_DEFAULT_TTL_SECONDS", 30),
		},
		Events: EventsConfig{
			Enabled:     envBool("EVENTS_ENABLED", true),
			ClientID:    envString("EVENTS_CLIENT_ID", "virtualbank-middleware"),
			Brokers:     envList("EVENTS_BROKERS", "localhost:9092"),
			TopicPrefix: envString("EVENTS_TOPIC_PREFIX", "virtualbank"),
		},
		Outbox: OutboxConfig{
			PollInterval: envMillis("OUTBOX_POLL_INTERVAL_MS", 5000),
			BatchSize:    envInt("OUTBOX_BATCH_SIZE", 100),
			MaxRetries:   envInt("OUTBOX_MAX_RETRIES", 10),
			Grace:        envSeconds("OUTBOX_GRACE_SECONDS", 30),
		},
		Auth: AuthConfig{
			Enabled:       envBool("AUTH_ENABLED", env == "production"),
			JWTSecret:     firstNonEmpty(os.Getenv("JWT_SECRET_KEY"), os.Getenv("JWT_SECRET")),
			APIKeys:       apiKeys,
			APIKeyHeader:  envString("AUTH_API_KEY_HEADER", "X-API-Key"),
			SessionHeader: envString("AUTH_SESSION_HEADER", "X-Session-Id"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the process cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Idempotency.Header) == "" {
		return errors.New("IDEMPOTENCY_HEADER must not be empty")
	}
	if c.Idempotency.TTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL_SECONDS must be positive")
	}
	if c.Cache.DefaultTTL <= 0 {
		return errors.New("CACHE_DEFAULT_TTL_SECONDS must be positive")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" && len(c.Auth.APIKeys) == 0 {
		return errors.New("AUTH_ENABLED requires JWT_SECRET_KEY or AUTH_API_KEYS")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// parseAPIKeys reads "id:hash:role|role,id2:hash2:role" entries.
func parseAPIKeys(raw string) ([]APIKey, error) {
	var keys []APIKey
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid AUTH_API_KEYS entry %q", entry)
		}
		key := APIKey{ID: parts[0], Hash: parts[1]}
		if len(parts) == 3 {
			for _, role := range strings.Split(parts[2], "|") {
				if role = strings.TrimSpace(role); role != "" {
					key.Roles = append(key.Roles, role)
				}
			}
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func defaultLogLevel(env string) string {
	if env == "development" {
		return "debug"
	}
	return "info"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func envSeconds(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Second
}

func envMillis(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Millisecond
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envList(key, def string) []string {
	var out []string
	for _, value := range strings.Split(envString(key, def), ",") {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
