package bot

import (
	"fmt"
	"strings"
)

// BotLevel selects a strategy.
type BotLevel int

const (
	BotLevelStandard BotLevel = iota
	BotLevelAggressive
)

// ParseLevel maps a level name to a BotLevel.
func ParseLevel(name string) (BotLevel, error) {
	switch strings.ToLower(name) {
	case "", "standard":
		return BotLevelStandard, nil
	case "aggressive":
		return BotLevelAggressive, nil
	default:
		return 0, fmt.Errorf("unknown bot level: %q", name)
	}
}

// NewBrain creates a new AI brain based on the specified level.
func NewBrain(level BotLevel) (Brain, error) {
	switch level {
	case BotLevelStandard:
		return &StandardBot{}, nil
	case BotLevelAggressive:
		return &AggressiveBot{}, nil
	default:
		return nil, fmt.Errorf("unknown bot level: %d", level)
	}
}
