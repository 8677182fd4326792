package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// GameConfig holds the session-level constants shared by host and peers.
type GameConfig struct {
	MinPlayers int `json:"min_players"`
	MaxPlayers int `json:"max_players"`
	HandSize   int `json:"hand_size"`
	// DisconnectCountdown is how many one-second units a peer waits after losing the
	// host before navigating home.
	DisconnectCountdown int `json:"disconnect_countdown"`
	HeartbeatIntervalMs int `json:"heartbeat_interval_ms"`
	HeartbeatTimeoutMs  int `json:"heartbeat_timeout_ms"`
}

// DefaultGameConfig returns the built-in constants.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		MinPlayers:          2,
		MaxPlayers:          6,
		HandSize:            7,
		DisconnectCountdown: 5,
		HeartbeatIntervalMs: 2000,
		HeartbeatTimeoutMs:  6000,
	}
}

// LoadGameConfig reads the game configuration from path. An empty path returns the
// defaults; fields left at zero in the file keep their default value.
func LoadGameConfig(path string) (GameConfig, error) {
	cfg := DefaultGameConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return GameConfig{}, &ConfigError{Field: "game config", Err: fmt.Errorf("failed to read game config: %w", err)}
	}

	var c GameConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return GameConfig{}, &ConfigError{Field: "game config", Err: fmt.Errorf("failed to unmarshal game config: %w", err)}
	}
	merge(&cfg, c)
	if err := cfg.Validate(); err != nil {
		return GameConfig{}, err
	}
	return cfg, nil
}

// Validate checks the player bounds and timing constants.
func (c GameConfig) Validate() error {
	switch {
	case c.MinPlayers < 2:
		return &ConfigError{Field: "min_players", Err: fmt.Errorf("must be at least 2, got %d", c.MinPlayers)}
	case c.MaxPlayers < c.MinPlayers:
		return &ConfigError{Field: "max_players", Err: fmt.Errorf("must be >= min_players (%d), got %d", c.MinPlayers, c.MaxPlayers)}
	case c.HandSize < 1:
		return &ConfigError{Field: "hand_size", Err: fmt.Errorf("must be positive, got %d", c.HandSize)}
	case c.HeartbeatTimeoutMs <= c.HeartbeatIntervalMs:
		return &ConfigError{Field: "heartbeat_timeout_ms", Err: fmt.Errorf("must exceed heartbeat_interval_ms")}
	}
	return nil
}

// HeartbeatInterval returns the ping period for peer links.
func (c GameConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMs) * time.Millisecond
}

// HeartbeatTimeout returns how long a silent link stays connected.
func (c GameConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutMs) * time.Millisecond
}

func merge(dst *GameConfig, src GameConfig) {
	if src.MinPlayers != 0 {
		dst.MinPlayers = src.MinPlayers
	}
	if src.MaxPlayers != 0 {
		dst.MaxPlayers = src.MaxPlayers
	}
	if src.HandSize != 0 {
		dst.HandSize = src.HandSize
	}
	if src.DisconnectCountdown != 0 {
		dst.DisconnectCountdown = src.DisconnectCountdown
	}
	if src.HeartbeatIntervalMs != 0 {
		dst.HeartbeatIntervalMs = src.HeartbeatIntervalMs
	}
	if src.HeartbeatTimeoutMs != 0 {
		dst.HeartbeatTimeoutMs = src.HeartbeatTimeoutMs
	}
}
