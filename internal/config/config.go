// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// グローバル参照はせず、必要なコンポーネントに注入する。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string

	// Auth
	AuthPrivateKeyPEM string // RS256署名用の秘密鍵（PEM）
	AuthPublicKeyPEM  string // RS256検証用の公開鍵（PEM）
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	AuthSessionTTL    time.Duration

	// Preview / Import
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Rate Limit
	RateLimitGeneral int
	RateLimitWrite   int

	// Server
	ServerPort  string
	MetricsPort string
	BaseURL     string
	FEBaseURL   string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// 鍵はbase64エンコードされたPEMとして受け取り、ここでデコードする。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.FEBaseURL = strings.TrimRight(os.Getenv("FE_BASE_URL"), "/")
	if cfg.FEBaseURL == "" {
		missing = append(missing, "FE_BASE_URL")
	}

	b64PrivateKey := os.Getenv("B64_AUTH_PRIVATE_KEY")
	if b64PrivateKey == "" {
		missing = append(missing, "B64_AUTH_PRIVATE_KEY")
	}

	b64PublicKey := os.Getenv("B64_AUTH_PUBLIC_KEY")
	if b64PublicKey == "" {
		missing = append(missing, "B64_AUTH_PUBLIC_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	privateKey, err := base64.StdEncoding.DecodeString(b64PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode B64_AUTH_PRIVATE_KEY: %w", err)
	}
	cfg.AuthPrivateKeyPEM = string(privateKey)

	publicKey, err := base64.StdEncoding.DecodeString(b64PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode B64_AUTH_PUBLIC_KEY: %w", err)
	}
	cfg.AuthPublicKeyPEM = string(publicKey)

	// Optional fields with defaults
	cfg.AccessTokenTTL = getEnvDuration("ACCESS_TOKEN_TTL", time.Hour)
	cfg.RefreshTokenTTL = getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour)
	cfg.AuthSessionTTL = getEnvDuration("AUTH_SESSION_TTL", 10*time.Minute)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWrite = getEnvInt("RATE_LIMIT_WRITE", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
