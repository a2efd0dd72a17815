package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodSecret = "a-secret-long-enough-for-tests"

func validConfig() *Config {
	return &Config{
		Port:           8080,
		JWTSecret:      goodSecret,
		StoreDriver:    DriverSQLite,
		DBPath:         "data/test.db",
		UploadMaxBytes: 1024,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid sqlite", func(c *Config) {}, false},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"unknown driver", func(c *Config) { c.StoreDriver = "postgres" }, true},
		{"mongo without uri", func(c *Config) { c.StoreDriver = DriverMongo }, true},
		{"mongo with uri", func(c *Config) { c.StoreDriver = DriverMongo; c.MongoURI = "mongodb://localhost" }, false},
		{"zero upload ceiling", func(c *Config) { c.UploadMaxBytes = 0 }, true},
		{"bad port", func(c *Config) { c.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", goodSecret)
	t.Setenv("PORT", "9090")
	t.Setenv("CLIENT_URLS", "https://app.example.com/, http://localhost:5173")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 14*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, int64(5<<20), cfg.UploadMaxBytes)
	assert.Equal(t, "/uploads", cfg.UploadURLPrefix)
	assert.Equal(t, []string{"https://app.example.com", "http://localhost:5173"}, cfg.ClientURLList())
	assert.Equal(t, "https://app.example.com", cfg.PrimaryClientURL())
	assert.False(t, cfg.GitHubEnabled())
}

func TestLoad_ConfigFileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"),
		[]byte("STORE_DRIVER: Mongo\nMONGO_URI: mongodb://db:27017\nTOKEN_TTL: 1h\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("ONEMPLOYMENT_TEST_DOTENV=loaded\n"), 0o644))
	t.Setenv("JWT_SECRET", goodSecret)
	t.Cleanup(func() { os.Unsetenv("ONEMPLOYMENT_TEST_DOTENV") })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.Equal(t, "mongodb://db:27017", cfg.MongoURI)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, "loaded", os.Getenv("ONEMPLOYMENT_TEST_DOTENV"))
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
