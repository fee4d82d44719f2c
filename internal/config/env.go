package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"

	ServiceName    = "bus-booking"
	ServiceVersion = "1.0.0"

	// DefaultJWTSecret is only fit for local runs; release mode refuses it.
	DefaultJWTSecret = "dev-secret-change-me"

	releaseMode = "release"
)

var ErrDefaultJWTSecret = errors.New("JWT_SECRET must be set when GIN_MODE=release")

type Env struct {
	AppAddr string
	GinMode string
	Store   string

	DBUser     string
	DBPassword string
	DBHost     string
	DBName     string
	DBReadHost string

	LockTimeout time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	// Admin account created at startup when email and password are both set.
	AdminName     string
	AdminEmail    string
	AdminPassword string

	CORSAllowedOrigins []string

	KafkaBroker string
	KafkaTopic  string

	OtelEndpoint   string
	OtelAuthHeader string
}

// LoadEnv reads the process environment, filling it from .env when present.
func LoadEnv() Env {
	_ = godotenv.Load()

	return Env{
		AppAddr: getenv("APP_ADDR", ":8080"),
		GinMode: getenv("GIN_MODE", ""),
		Store:   strings.ToLower(getenv("STORE", StoreMySQL)),

		DBUser:     getenv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     getenv("DB_HOST", "127.0.0.1:3306"),
		DBName:     getenv("DB_NAME", "bus_booking"),
		DBReadHost: getenv("DB_READ_HOST", ""),

		LockTimeout: durationEnv("LOCK_TIMEOUT", 5*time.Second),

		JWTSecret: getenv("JWT_SECRET", DefaultJWTSecret),
		JWTTTL:    durationEnv("JWT_TTL", 24*time.Hour),

		AdminName:     getenv("ADMIN_NAME", "Administrator"),
		AdminEmail:    getenv("ADMIN_EMAIL", ""),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		CORSAllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "*")),

		KafkaBroker: getenv("KAFKA_BROKER", ""),
		KafkaTopic:  getenv("KAFKA_TOPIC", "booking-events"),

		OtelEndpoint:   getenv("OTEL_ENDPOINT", ""),
		OtelAuthHeader: getenv("OTEL_AUTH_HEADER", ""),
	}
}

// UsesDefaultJWTSecret reports whether tokens are signed with the public
// development secret.
func (e Env) UsesDefaultJWTSecret() bool {
	return e.JWTSecret == DefaultJWTSecret
}

// Validate rejects settings that must not reach a release deployment.
func (e Env) Validate() error {
	if e.GinMode == releaseMode && e.UsesDefaultJWTSecret() {
		return ErrDefaultJWTSecret
	}
	return nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// durationEnv accepts Go durations ("750ms") or plain seconds ("5").
func durationEnv(key string, def time.Duration) time.Duration {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if d, err := time.ParseDuration(raw + "s"); err == nil && d > 0 {
		return d
	}
	return def
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
