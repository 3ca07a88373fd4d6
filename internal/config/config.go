package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AdamBeresnev/beer-pong/internal/bracket"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabasePath       string
	MigrationsPath     string
	ServerPort         int
	CORSAllowedOrigins []string
	TournamentDefaults TournamentDefaults
}

// TournamentDefaults fill in whatever a new tournament leaves unset.
type TournamentDefaults struct {
	BeersPerPlayer     int
	TimeWindowMinutes  int
	UndoWindowMinutes  int
	CancellationPolicy bracket.CancellationPolicy
}

func DefaultTournamentDefaults() TournamentDefaults {
	return TournamentDefaults{
		BeersPerPlayer:     2,
		TimeWindowMinutes:  5,
		UndoWindowMinutes:  5,
		CancellationPolicy: bracket.KeepCredits,
	}
}

// Load reads the configuration from the environment, after an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	defaults := DefaultTournamentDefaults()
	cfg := &Config{
		DatabasePath:       getEnvOrDefault("DATABASE_PATH", "beer_pong.db"),
		MigrationsPath:     getEnvOrDefault("MIGRATIONS_PATH", "file://migrations"),
		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
	}

	var err error
	if cfg.ServerPort, err = getIntEnv("SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", cfg.ServerPort)
	}

	if defaults.BeersPerPlayer, err = getPositiveIntEnv("DEFAULT_BEERS_PER_PLAYER", defaults.BeersPerPlayer); err != nil {
		return nil, err
	}
	if defaults.TimeWindowMinutes, err = getPositiveIntEnv("DEFAULT_TIME_WINDOW_MINUTES", defaults.TimeWindowMinutes); err != nil {
		return nil, err
	}
	if defaults.UndoWindowMinutes, err = getPositiveIntEnv("DEFAULT_UNDO_WINDOW_MINUTES", defaults.UndoWindowMinutes); err != nil {
		return nil, err
	}

	policy := bracket.CancellationPolicy(getEnvOrDefault("DEFAULT_CANCELLATION_POLICY", string(defaults.CancellationPolicy)))
	switch policy {
	case bracket.KeepCredits, bracket.RevertCredits:
		defaults.CancellationPolicy = policy
	default:
		return nil, fmt.Errorf("invalid DEFAULT_CANCELLATION_POLICY %q", policy)
	}

	cfg.TournamentDefaults = defaults
	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func getPositiveIntEnv(key string, fallback int) (int, error) {
	v, err := getIntEnv(key, fallback)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
