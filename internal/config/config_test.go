package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "JWT_SECRET", "SENDER_EMAIL", "APP_ENV", "MONGO_URI", "MONGO_DB",
	"MONGO_TIMEOUT", "SMTP_SERVER", "SMTP_USER", "SMTP_PASSWORD",
	"CORS_ORIGINS", "LOG_FORMAT",
}

// clearEnv blanks every key for the test. godotenv does not override set
// variables, so keys are unset rather than set to "".
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SENDER_EMAIL", "noreply@example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.False(t, cfg.Production)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "mailauth", cfg.MongoDB)
	assert.Equal(t, 5*time.Second, cfg.MongoTimeout)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_MissingRequired(t *testing.T) {
	clearEnv(t)

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "SENDER_EMAIL")
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "JWT_SECRET=from-file\nSENDER_EMAIL=file@example.com\nAPP_ENV=production\n" +
		"CORS_ORIGINS=https://a.example.com, https://b.example.com\nMONGO_TIMEOUT=2s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SENDER_EMAIL", "env@example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "env@example.com", cfg.SenderEmail)
	assert.True(t, cfg.Production)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 2*time.Second, cfg.MongoTimeout)
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SENDER_EMAIL", "noreply@example.com")

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoad_InvalidTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SENDER_EMAIL", "noreply@example.com")
	t.Setenv("MONGO_TIMEOUT", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_TIMEOUT")
}
