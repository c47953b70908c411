package ratelimit

import "time"

// Limit defines a fixed-window action limit.
// Zero values mean no limit.
type Limit struct {
	MaxActions int           `yaml:"max_actions" json:"max_actions"`
	Window     time.Duration `yaml:"window" json:"window"`
}

// Enabled returns true if both the action cap and the window are set.
func (l Limit) Enabled() bool {
	return l.MaxActions > 0 && l.Window > 0
}
