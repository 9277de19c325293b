package configs

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ClientConfig is the connection policy of the client library.
type ClientConfig struct {
	// ServerURL is the WebSocket endpoint of the coordination server.
	ServerURL string

	// MaxRetries is the number of consecutive failed reconnect attempts tolerated
	// before the connection gives up and reports ERROR.
	MaxRetries int

	// BaseBackoff is the delay before the first reconnect attempt; it doubles per attempt.
	BaseBackoff time.Duration

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration

	// DialTimeout bounds a single connection attempt, handshake included.
	DialTimeout time.Duration
}

// DefaultClientConfig returns the policy used when nothing is configured.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerURL:   "ws://localhost:8080/ws",
		MaxRetries:  3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  10 * time.Second,
		DialTimeout: 10 * time.Second,
	}
}

// LoadClientConfig overlays LT_SERVER_URL, LT_MAX_RETRIES, LT_BASE_BACKOFF,
// LT_MAX_BACKOFF and LT_DIAL_TIMEOUT on top of DefaultClientConfig.
func LoadClientConfig() (ClientConfig, error) {
	cfg := DefaultClientConfig()

	if v := os.Getenv("LT_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}

	if v := os.Getenv("LT_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return ClientConfig{}, fmt.Errorf("invalid LT_MAX_RETRIES %q", v)
		}
		cfg.MaxRetries = n
	}

	var err error
	if cfg.BaseBackoff, err = durationEnv("LT_BASE_BACKOFF", cfg.BaseBackoff); err != nil {
		return ClientConfig{}, err
	}
	if cfg.MaxBackoff, err = durationEnv("LT_MAX_BACKOFF", cfg.MaxBackoff); err != nil {
		return ClientConfig{}, err
	}
	if cfg.DialTimeout, err = durationEnv("LT_DIAL_TIMEOUT", cfg.DialTimeout); err != nil {
		return ClientConfig{}, err
	}

	if cfg.MaxBackoff < cfg.BaseBackoff {
		return ClientConfig{}, fmt.Errorf("LT_MAX_BACKOFF (%s) must not be below LT_BASE_BACKOFF (%s)", cfg.MaxBackoff, cfg.BaseBackoff)
	}

	return cfg, nil
}
