package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	Version     string `envconfig:"VERSION" default:"dev"`

	// DatabaseURL selects the postgres-backed user store. When empty the
	// server runs on the in-memory store, which is only suitable for local
	// development.
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`

	// TokenSecret signs session tokens. It is loaded once at startup and
	// never changes for the lifetime of the process.
	TokenSecret string `envconfig:"TOKEN_SECRET" required:"true"`
	BcryptCost  int    `envconfig:"BCRYPT_COST" default:"12"`

	// RedisAddr selects the redis-backed revocation store when set.
	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// AdminURL is the base URL of the admin UI, used to build reset links.
	AdminURL string `envconfig:"ADMIN_URL" default:"http://localhost:8080/admin"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:""`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:""`
	SMTPUseTLS   bool   `envconfig:"SMTP_USE_TLS" default:"false"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether the server runs in production-equivalent mode.
// Session cookies are only marked Secure in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
