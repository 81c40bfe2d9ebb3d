package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	DBAdapter  string
	SQLiteFile string
	JwtSecret  string
	LogLevel   string
	LogFormat  string
	Env        string

	// Publishing identity and public surface
	PublishUsername    string
	PublishPassword    string
	PublicURL          string
	PublisherAgent     string
	PostPath           string
	BatchMaxItems      int
	TokenRatePerMinute int
	// TrustProxy lets X-Forwarded-For decide the client IP used for rate
	// limiting. Only enable it behind a proxy that overwrites the header.
	TrustProxy bool

	// PostgreSQL connection settings
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) (int, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %s", key, v)
	}
	return n, nil
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}

	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

// Configured reports whether the signing secret and the publishing
// credential pair are all present. Authenticated endpoints refuse to work
// otherwise.
func (c *Config) Configured() bool {
	return c.JwtSecret != "" && c.PublishUsername != "" && c.PublishPassword != ""
}

// Production reports whether ENV (or NODE_ENV) names a production deployment.
func (c *Config) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

// New loads configuration from the environment. A .env file in the working
// directory is read first when present; real environment variables win.
func New() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		Port:       getenv("PORT", "8080"),
		DBAdapter:  strings.ToLower(getenv("DB_ADAPTER", "sqlite")),
		SQLiteFile: getenv("SQLITE_FILE", "./data/site.db"),
		JwtSecret:  getenv("JWT_SECRET", ""),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogFormat:  getenv("LOG_FORMAT", "json"),
		Env:        strings.ToLower(getenv("ENV", getenv("NODE_ENV", ""))),

		PublishUsername: getenv("PUBLISH_USERNAME", ""),
		PublishPassword: getenv("PUBLISH_PASSWORD", ""),
		PublicURL:       strings.TrimRight(getenv("PUBLIC_URL", ""), "/"),
		PublisherAgent:  getenv("PUBLISHER_AGENT", "BlogPublisher"),
		PostPath:        getenv("POST_PATH", "/blog/"),

		PostgresDSN:      getenv("POSTGRES_DSN", ""),
		PostgresHost:     getenv("POSTGRES_HOST", getenv("DB_HOST", "localhost")),
		PostgresPort:     getenv("POSTGRES_PORT", getenv("DB_PORT", "5432")),
		PostgresUser:     getenv("POSTGRES_USER", getenv("DB_USER", "pressbridge")),
		PostgresPassword: getenv("POSTGRES_PASSWORD", getenv("DB_PASSWORD", "")),
		PostgresDB:       getenv("POSTGRES_DB", getenv("DB_NAME", "pressbridge")),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", getenv("DB_SSLMODE", "disable")),
	}

	var err error
	if c.BatchMaxItems, err = getenvInt("BATCH_MAX_ITEMS", 25); err != nil {
		return nil, err
	}
	if c.TokenRatePerMinute, err = getenvInt("TOKEN_RATE_PER_MINUTE", 10); err != nil {
		return nil, err
	}
	if v := getenv("TRUST_PROXY", ""); v != "" {
		if c.TrustProxy, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid TRUST_PROXY: %s", v)
		}
	}

	switch c.DBAdapter {
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	case "sqlite":
		if c.SQLiteFile == "" {
			return nil, errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_ADAPTER: %s (supported: sqlite, postgres)", c.DBAdapter)
	}

	if !strings.HasPrefix(c.PostPath, "/") {
		c.PostPath = "/" + c.PostPath
	}
	if !strings.HasSuffix(c.PostPath, "/") {
		c.PostPath += "/"
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT: %s", c.Port)
	}

	return c, nil
}
