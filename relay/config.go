package relay

import (
	"time"

	"github.com/relaybridge/relaybridge/observability"
)

// Config is the relay's runtime configuration (spec §6 "Configuration
// options"). Defaults mirror the documented values exactly.
type Config struct {
	// Path is the WebSocket endpoint path. Default "/ws".
	Path string

	// MaxPendingFramesPerConnection bounds the per-connectionId pending-frame
	// FIFO (spec §3, §6). Default 200.
	MaxPendingFramesPerConnection int

	// ControlProbeInitialDelay is the first wait of the control-liveness
	// probe (spec §4.C). Default 10s.
	ControlProbeInitialDelay time.Duration

	// ControlProbeSecondDelay is the second wait, after the sync nudge
	// (spec §4.C). Default 5s.
	ControlProbeSecondDelay time.Duration

	Observer observability.RelayObserver
}

// DefaultConfig returns the documented relay defaults (spec §6).
func DefaultConfig() Config {
	return Config{
		Path:                           "/ws",
		MaxPendingFramesPerConnection:  200,
		ControlProbeInitialDelay:       10 * time.Second,
		ControlProbeSecondDelay:        5 * time.Second,
		Observer:                       observability.NoopRelayObserver,
	}
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = "/ws"
	}
	if c.MaxPendingFramesPerConnection <= 0 {
		c.MaxPendingFramesPerConnection = 200
	}
	if c.ControlProbeInitialDelay <= 0 {
		c.ControlProbeInitialDelay = 10 * time.Second
	}
	if c.ControlProbeSecondDelay <= 0 {
		c.ControlProbeSecondDelay = 5 * time.Second
	}
	if c.Observer == nil {
		c.Observer = observability.NoopRelayObserver
	}
}
