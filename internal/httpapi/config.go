package httpapi

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultListenAddr    = ":9090"
	defaultLedgerAddr    = "localhost:7000"
	defaultAllowedOrigin = "http://localhost:8000"
	defaultJWTIssuer     = "walletledger"
	defaultLedgerTimeout = 35 * time.Second
	defaultRateLimit     = 30
	defaultRateWindow    = time.Minute
	defaultRatePrefix    = "walletapi:rate"
)

// Config aggregates runtime settings for the HTTP façade.
type Config struct {
	ListenAddr     string
	LedgerAddress  string
	LedgerInsecure bool
	LedgerTimeout  time.Duration
	AllowedOrigins []string
	JWTSigningKey  string
	JWTIssuer      string
	RedisAddr      string
	RateLimit      int
	RateWindow     time.Duration
	RateKeyPrefix  string
}

// Validate fills defaults and ensures the configuration contains sane values.
// An empty RedisAddr disables rate limiting.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.LedgerAddress = defaultIfEmpty(cfg.LedgerAddress, defaultLedgerAddr)
	cfg.JWTIssuer = defaultIfEmpty(cfg.JWTIssuer, defaultJWTIssuer)
	cfg.RateKeyPrefix = defaultIfEmpty(cfg.RateKeyPrefix, defaultRatePrefix)
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = defaultLedgerTimeout
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateWindow == 0 {
		cfg.RateWindow = defaultRateWindow
	}
	if len(cfg.JWTSigningKey) == 0 {
		return fmt.Errorf("jwt signing key is required")
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if cfg.RateWindow < time.Second {
		return fmt.Errorf("rate window must be at least one second")
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
