package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend API
	APIBaseURL  string
	APIBasePath string

	// Credential store
	CredentialStoreDriver string
	CredentialStoreDSN    string

	// Outbound HTTP
	HTTPTimeout    time.Duration
	RestoreTimeout time.Duration
	RequestRate    float64
	RequestBurst   int

	// Listing
	PostsPageSize          int
	FollowPageSize         int
	FollowProbeConcurrency int

	// Companion server
	ServerPort        string
	RateLimitGeneral  int
	CORSAllowedOrigin string
	CookieSecure      bool

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// すべての項目に既定値があり、読み込み後にValidateで整合性を検査する。
func Load() (*Config, error) {
	cfg := &Config{
		APIBaseURL:             strings.TrimRight(getEnvString("API_BASE_URL", "http://localhost:8080"), "/"),
		APIBasePath:            getEnvString("API_BASE_PATH", "/api/v1"),
		CredentialStoreDriver:  getEnvString("CREDENTIAL_STORE_DRIVER", "sqlite"),
		CredentialStoreDSN:     getEnvString("CREDENTIAL_STORE_DSN", "./data/blogclient.db"),
		HTTPTimeout:            getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		RestoreTimeout:         getEnvDuration("RESTORE_TIMEOUT", 5*time.Second),
		RequestRate:            getEnvFloat("REQUEST_RATE", 10),
		RequestBurst:           getEnvInt("REQUEST_BURST", 20),
		PostsPageSize:          getEnvInt("POSTS_PAGE_SIZE", 12),
		FollowPageSize:         getEnvInt("FOLLOW_PAGE_SIZE", 20),
		FollowProbeConcurrency: getEnvInt("FOLLOW_PROBE_CONCURRENCY", 4),
		ServerPort:             getEnvString("SERVER_PORT", "8090"),
		RateLimitGeneral:       getEnvInt("RATE_LIMIT_GENERAL", 120),
		CORSAllowedOrigin:      getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
		CookieSecure:           getEnvBool("COOKIE_SECURE", false),
		LogLevel:               getEnvString("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検査する。
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL: %q", c.APIBaseURL)
	}
	if !strings.HasPrefix(c.APIBasePath, "/") {
		return fmt.Errorf("API_BASE_PATH must start with '/': %q", c.APIBasePath)
	}
	switch c.CredentialStoreDriver {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("CREDENTIAL_STORE_DRIVER must be sqlite or postgres: %q", c.CredentialStoreDriver)
	}
	if c.CredentialStoreDSN == "" {
		return fmt.Errorf("CREDENTIAL_STORE_DSN cannot be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be > 0")
	}
	if c.RestoreTimeout <= 0 {
		return fmt.Errorf("RESTORE_TIMEOUT must be > 0")
	}
	if c.RequestRate <= 0 || c.RequestBurst <= 0 {
		return fmt.Errorf("REQUEST_RATE and REQUEST_BURST must be > 0")
	}
	if c.PostsPageSize <= 0 || c.FollowPageSize <= 0 {
		return fmt.Errorf("POSTS_PAGE_SIZE and FOLLOW_PAGE_SIZE must be > 0")
	}
	if c.FollowProbeConcurrency <= 0 {
		return fmt.Errorf("FOLLOW_PROBE_CONCURRENCY must be > 0")
	}
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}
	return nil
}

// APIURL はベースURLとベースパスを連結したAPIのルートURLを返す。
func (c *Config) APIURL() string {
	return c.APIBaseURL + strings.TrimRight(c.APIBasePath, "/")
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
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultVal
	}
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
