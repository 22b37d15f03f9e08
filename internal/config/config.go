package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var ErrMissingDataDir = errors.New("data directory could not be determined")

type Config struct {
	DataDir string
	DBPath  string

	Cache     CacheConfig
	Search    SearchConfig
	Scheduler SchedulerConfig
	HTTP      HTTPConfig
	Crypto    CryptoConfig
	Log       LogConfig
}

type CacheConfig struct {
	TTL time.Duration
}

type SearchConfig struct {
	ContextChars int
}

type SchedulerConfig struct {
	PollInterval time.Duration
}

type HTTPConfig struct {
	ListenAddr  string
	HealthPath  string
	MetricsPath string
}

// CryptoConfig holds the optional master keys used to seal instance
// credentials at rest. An empty key set disables sealing.
type CryptoConfig struct {
	CurrentKeyID string
	Keys         map[string][]byte
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir: dataDir,
		DBPath:  mustEnv("ALPACA_DB_PATH", filepath.Join(dataDir, "alpaca.db")),
		Cache: CacheConfig{
			TTL: mustDuration("MODEL_CACHE_TTL", 5*time.Minute),
		},
		Search: SearchConfig{
			ContextChars: mustInt("SEARCH_CONTEXT_CHARS", 50),
		},
		Scheduler: SchedulerConfig{
			PollInterval: mustDuration("SCHEDULER_POLL_INTERVAL", time.Minute),
		},
		HTTP: HTTPConfig{
			ListenAddr:  mustEnv("METRICS_ADDR", ":9090"),
			HealthPath:  mustEnv("HEALTH_PATH", "/healthz"),
			MetricsPath: mustEnv("METRICS_PATH", "/metrics"),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
	}

	cc, err := loadCryptoConfig()
	if err != nil {
		return nil, err
	}
	cfg.Crypto = cc

	return cfg, nil
}

// resolveDataDir prefers ALPACA_DATA_DIR, then XDG_DATA_HOME, then
// ~/.local/share, always under an alpaca subdirectory.
func resolveDataDir() (string, error) {
	if dir := mustEnv("ALPACA_DATA_DIR", ""); dir != "" {
		return dir, nil
	}
	if xdg := mustEnv("XDG_DATA_HOME", ""); xdg != "" {
		return filepath.Join(xdg, "alpaca"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return "", ErrMissingDataDir
	}
	return filepath.Join(home, ".local", "share", "alpaca"), nil
}

// loadCryptoConfig collects master keys from ALPACA_MASTER_KEYS_JSON,
// ALPACA_MASTER_KEY_<ID>_B64 variables and the singleton
// ALPACA_MASTER_KEY_B64. Unlike the rest of the config, keys are
// optional; with none present, instance credentials are stored as-is.
func loadCryptoConfig() (CryptoConfig, error) {
	keysB64 := map[string]string{}

	if raw := mustEnv("ALPACA_MASTER_KEYS_JSON", ""); raw != "" {
		var parsed map[string]string
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return CryptoConfig{}, fmt.Errorf("parse ALPACA_MASTER_KEYS_JSON: %w", err)
		}
		for id, val := range parsed {
			if strings.TrimSpace(id) == "" || strings.TrimSpace(val) == "" {
				continue
			}
			keysB64[id] = val
		}
	}

	for _, e := range os.Environ() {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) != 2 {
			continue
		}
		k, v := parts[0], parts[1]
		if !strings.HasPrefix(k, "ALPACA_MASTER_KEY_") || !strings.HasSuffix(k, "_B64") {
			continue
		}
		if k == "ALPACA_MASTER_KEY_B64" {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, "ALPACA_MASTER_KEY_"), "_B64")
		if id == "" || v == "" {
			continue
		}
		keysB64[id] = v
	}

	current := mustEnv("ALPACA_MASTER_KEY_CURRENT_ID", "")
	if singleton := mustEnv("ALPACA_MASTER_KEY_B64", ""); singleton != "" {
		if current == "" {
			current = "default"
		}
		keysB64[current] = singleton
	}

	if len(keysB64) == 0 {
		return CryptoConfig{}, nil
	}

	keys := make(map[string][]byte, len(keysB64))
	for id, b64 := range keysB64 {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return CryptoConfig{}, fmt.Errorf("decode master key %q: %w", id, err)
		}
		if len(raw) != 32 {
			return CryptoConfig{}, fmt.Errorf("master key %q must be 32 bytes after base64 decode", id)
		}
		keys[id] = raw
	}

	if current == "" {
		for id := range keys {
			current = id
			break
		}
	}
	if _, ok := keys[current]; !ok {
		return CryptoConfig{}, fmt.Errorf("ALPACA_MASTER_KEY_CURRENT_ID=%q does not exist in provided keys", current)
	}

	return CryptoConfig{
		CurrentKeyID: current,
		Keys:         keys,
	}, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
