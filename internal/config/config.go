// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port         string
	JWTSecret    string
	SenderEmail  string
	Production   bool
	MongoURI     string
	MongoDB      string
	MongoTimeout time.Duration
	SMTPServer   string
	SMTPUser     string
	SMTPPassword string
	CORSOrigins  []string
	LogFormat    string
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string { return ":" + c.Port }

// Load reads the configuration. A missing envFile is not an error; variables
// already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	timeout, err := getDuration("MONGO_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		SenderEmail:  os.Getenv("SENDER_EMAIL"),
		Production:   os.Getenv("APP_ENV") == "production",
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("MONGO_DB", "mailauth"),
		MongoTimeout: timeout,
		SMTPServer:   os.Getenv("SMTP_SERVER"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
	}

	var missing []string
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if cfg.SenderEmail == "" {
		missing = append(missing, "SENDER_EMAIL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: expected a positive duration", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
