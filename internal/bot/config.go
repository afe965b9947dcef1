package bot

import (
	"time"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Long-poll timeout for Telegram updates, in seconds
	UpdateTimeout int
	// Divisor applied to a pronunciation score to turn it into XP
	ScoreXPDivisor int
	// How long a mismatched pair stays face up before flipping back
	MismatchDelay time.Duration
	// Scores at or above this threshold get the enthusiastic reply
	GreatScoreThreshold int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		UpdateTimeout:       60,
		ScoreXPDivisor:      10,
		MismatchDelay:       700 * time.Millisecond,
		GreatScoreThreshold: 90,
	}
}
