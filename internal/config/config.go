package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
)

type AppConfig struct {
	IrisBaseURL string
	IrisWSURL   string
	// EgressMode is "http", "ws" or "auto".
	EgressMode   string
	EgressDryRun bool

	BotPrefix string

	XUserID    string
	XUserEmail string
	XSessionID string

	RedisURL    string
	DatabaseURL string
	HTTPAddr    string

	AllowedRooms []string

	AIDepth     int
	AIDelay     time.Duration
	GameTTL     time.Duration
	TemplateDir string
	// BoardImages sends a PNG after every move; text boards otherwise.
	BoardImages bool
}

// Load reads the process environment after merging an optional .env file
// (ENV_FILE, default ".env"). Variables already set win over the file.
func Load() (*AppConfig, error) {
	envFile := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from a lookup function. Defaults are applied first.
func FromEnv(getenv func(string) string) (*AppConfig, error) {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }
	cfg := &AppConfig{
		EgressMode:  "auto",
		HTTPAddr:    ":8080",
		AIDepth:     4,
		AIDelay:     1500 * time.Millisecond,
		GameTTL:     24 * time.Hour,
		BoardImages: true,
	}

	cfg.IrisBaseURL = get("IRIS_BASE_URL")
	cfg.IrisWSURL = get("IRIS_WS_URL")
	cfg.BotPrefix = get("BOT_PREFIX")
	cfg.XUserID = get("X_USER_ID")
	cfg.XUserEmail = get("X_USER_EMAIL")
	cfg.XSessionID = get("X_SESSION_ID")
	cfg.RedisURL = get("REDIS_URL")
	cfg.DatabaseURL = get("DATABASE_URL")
	cfg.TemplateDir = get("MSG_TEMPLATE_DIR")
	if v := get("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	for _, part := range strings.Split(get("ALLOWED_ROOMS"), ",") {
		if s := strings.TrimSpace(part); s != "" {
			cfg.AllowedRooms = append(cfg.AllowedRooms, s)
		}
	}

	if v := strings.ToLower(get("IRIS_EGRESS")); v != "" {
		switch v {
		case "http", "ws", "auto":
			cfg.EgressMode = v
		default:
			return nil, fmt.Errorf("IRIS_EGRESS must be http, ws or auto, got %q", v)
		}
	}
	var err error
	if cfg.EgressDryRun, err = boolVar(get, "IRIS_DRYRUN", false); err != nil {
		return nil, err
	}
	if cfg.BoardImages, err = boolVar(get, "MANCALA_BOARD_IMAGES", cfg.BoardImages); err != nil {
		return nil, err
	}

	if v := get("MANCALA_AI_DEPTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > mancala.MaxDepth {
			return nil, fmt.Errorf("MANCALA_AI_DEPTH must be 0..%d, got %q", mancala.MaxDepth, v)
		}
		cfg.AIDepth = n
	}
	if v := get("MANCALA_AI_DELAY_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("MANCALA_AI_DELAY_MS must be a non-negative integer, got %q", v)
		}
		cfg.AIDelay = time.Duration(n) * time.Millisecond
	}
	if v := get("MANCALA_GAME_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("MANCALA_GAME_TTL must be a positive duration, got %q", v)
		}
		cfg.GameTTL = d
	}

	if cfg.IrisBaseURL == "" {
		return nil, errors.New("IRIS_BASE_URL is required")
	}
	if cfg.IrisWSURL == "" {
		return nil, errors.New("IRIS_WS_URL is required")
	}
	if cfg.BotPrefix == "" {
		return nil, errors.New("BOT_PREFIX is required")
	}
	return cfg, nil
}

func boolVar(get func(string) string, key string, def bool) (bool, error) {
	v := get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

// Headers returns the Iris identity headers that are configured.
func (c *AppConfig) Headers() map[string]string {
	h := make(map[string]string, 3)
	if c.XUserID != "" {
		h["X-User-Id"] = c.XUserID
	}
	if c.XUserEmail != "" {
		h["X-User-Email"] = c.XUserEmail
	}
	if c.XSessionID != "" {
		h["X-Session-Id"] = c.XSessionID
	}
	return h
}

// RoomAllowed is true when no allow-list is configured or room is on it.
func (c *AppConfig) RoomAllowed(room string) bool {
	if len(c.AllowedRooms) == 0 {
		return true
	}
	for _, r := range c.AllowedRooms {
		if r == room {
			return true
		}
	}
	return false
}
