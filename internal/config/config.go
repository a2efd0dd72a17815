// Package config loads process configuration once at startup. Values come
// from, lowest to highest precedence: defaults, an optional config.yml,
// a .env file, and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"

	minSecretLen = 16
)

type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	Port     int    `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	JWTSecret  string        `mapstructure:"JWT_SECRET"`
	TokenTTL   time.Duration `mapstructure:"TOKEN_TTL"`
	BcryptCost int           `mapstructure:"BCRYPT_COST"`

	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	DBPath        string `mapstructure:"DB_PATH"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	ClientURLs      string `mapstructure:"CLIENT_URLS"`
	UploadMaxBytes  int64  `mapstructure:"UPLOAD_MAX_BYTES"`
	UploadDir       string `mapstructure:"UPLOAD_DIR"`
	UploadURLPrefix string `mapstructure:"UPLOAD_URL_PREFIX"`
	StaticDir       string `mapstructure:"STATIC_DIR"`

	GitHubClientID     string `mapstructure:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `mapstructure:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `mapstructure:"GITHUB_CALLBACK_URL"`
}

var defaults = map[string]any{
	"APP_ENV":              "development",
	"PORT":                 8080,
	"LOG_LEVEL":            "info",
	"JWT_SECRET":           "",
	"TOKEN_TTL":            "336h",
	"BCRYPT_COST":          12,
	"STORE_DRIVER":         DriverSQLite,
	"DB_PATH":              "data/onemployment.db",
	"MONGO_URI":            "",
	"MONGO_DATABASE":       "onemployment",
	"CLIENT_URLS":          "http://localhost:5173",
	"UPLOAD_MAX_BYTES":     5 << 20,
	"UPLOAD_DIR":           "uploads",
	"UPLOAD_URL_PREFIX":    "/uploads",
	"STATIC_DIR":           "",
	"GITHUB_CLIENT_ID":     "",
	"GITHUB_CLIENT_SECRET": "",
	"GITHUB_CALLBACK_URL":  "",
}

// Load reads and validates the configuration. dirs are searched for
// config.yml and .env; with none given the working directory is used.
func Load(dirs ...string) (*Config, error) {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	// godotenv never overrides variables that are already set.
	for _, dir := range dirs {
		err := godotenv.Load(strings.TrimRight(dir, "/") + "/.env")
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading .env: %w", err)
		}
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetConfigName("config")
	v.SetConfigType("yml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config.yml: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.JWTSecret == "":
		return errors.New("JWT_SECRET is required")
	case len(c.JWTSecret) < minSecretLen:
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLen)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("PORT %d is out of range", c.Port)
	case c.UploadMaxBytes <= 0:
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}

	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo driver")
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q is not one of %s, %s", c.StoreDriver, DriverSQLite, DriverMongo)
	}
	return nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// ClientURLList splits CLIENT_URLS on commas, dropping blanks.
func (c *Config) ClientURLList() []string {
	var out []string
	for _, u := range strings.Split(c.ClientURLs, ",") {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// PrimaryClientURL is where browser redirects (GitHub sign-in) land.
func (c *Config) PrimaryClientURL() string {
	if urls := c.ClientURLList(); len(urls) > 0 {
		return urls[0]
	}
	return ""
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}
