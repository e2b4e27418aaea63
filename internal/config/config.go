// Package config centralises configuration parsing for the relay binaries.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// OAuthClient is one platform's client registration plus the user's refresh token.
type OAuthClient struct {
	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`
	RefreshToken string `validate:"required"`
	TokenURL     string
}

// Credentials holds both platforms' OAuth clients. It is built once at start-up and
// injected; nothing below main reads credentials from the environment.
type Credentials struct {
	Strava OAuthClient
	Fitbit OAuthClient
}

// Config captures runtime configuration values for the relay.
type Config struct {
	Credentials Credentials

	StravaAPIURL string
	FitbitAPIURL string
	HTTPTimeout  time.Duration

	// Event source for the one-shot sync binary.
	EventPath      string
	TestActivityID string

	HTTPAddress    string
	MetricsAddress string
	VerifyToken    string
	MaxBodyBytes   int
	DispatchMode   string // "github" or "kafka".

	GitHubAPIURL   string
	GitHubToken    string
	GitHubRepo     string
	DispatchEvent  string
	KafkaBrokers   []string
	SyncTopic      string
	ConsumerGroup  string
	TokenStoreURL  string // Postgres URL; empty keeps rotated tokens in memory only.
	JWTSecret      string
	JWTIssuer      string
}

// Load reads a .env file when present, then environment variables, applying
// defaults that point at the production platform endpoints.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}

	return Config{
		Credentials: Credentials{
			Strava: OAuthClient{
				ClientID:     getEnv("STRAVA_CLIENT_ID", ""),
				ClientSecret: getEnv("STRAVA_CLIENT_SECRET", ""),
				RefreshToken: getEnv("STRAVA_REFRESH_TOKEN", ""),
				TokenURL:     getEnv("STRAVA_TOKEN_URL", "https://www.strava.com/oauth/token"),
			},
			Fitbit: OAuthClient{
				ClientID:     getEnv("FITBIT_CLIENT_ID", ""),
				ClientSecret: getEnv("FITBIT_CLIENT_SECRET", ""),
				RefreshToken: getEnv("FITBIT_REFRESH_TOKEN", ""),
				TokenURL:     getEnv("FITBIT_TOKEN_URL", "https://api.fitbit.com/oauth2/token"),
			},
		},
		StravaAPIURL:   getEnv("STRAVA_API_URL", "https://www.strava.com/api/v3"),
		FitbitAPIURL:   getEnv("FITBIT_API_URL", "https://api.fitbit.com"),
		HTTPTimeout:    getDurationEnv("HTTP_TIMEOUT", 10*time.Second),
		EventPath:      getEnv("GITHUB_EVENT_PATH", ""),
		TestActivityID: getEnv("TEST_ACTIVITY_ID", ""),
		HTTPAddress:    getEnv("HTTP_ADDRESS", ":8080"),
		MetricsAddress: getEnv("METRICS_ADDRESS", ":9195"),
		VerifyToken:    getEnv("STRAVA_VERIFY_TOKEN", ""),
		MaxBodyBytes:   getIntEnv("WEBHOOK_MAX_BODY_BYTES", 1<<20),
		DispatchMode:   strings.ToLower(getEnv("DISPATCH_MODE", "github")),
		GitHubAPIURL:   getEnv("GITHUB_API_URL", "https://api.github.com"),
		GitHubToken:    getEnv("GITHUB_TOKEN", ""),
		GitHubRepo:     getEnv("GITHUB_REPO", "tenzincode/stravbit"),
		DispatchEvent:  getEnv("DISPATCH_EVENT_TYPE", "strava_activity"),
		KafkaBrokers:   splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		SyncTopic:      getEnv("SYNC_TOPIC", "strava_activity_syncs"),
		ConsumerGroup:  getEnv("CONSUMER_GROUP_ID", "stravbit-sync"),
		TokenStoreURL:  getEnv("TOKEN_STORE_URL", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "stravbit"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
