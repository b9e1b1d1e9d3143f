package recovery

import (
	"time"

	"github.com/openbrick/socrescue/framer"
	"github.com/openbrick/socrescue/logging"
	"github.com/openbrick/socrescue/transport"
)

// Dialer opens the transport for a session. Injectable for tests and
// simulated devices; the default claims a real serial port.
type Dialer func(endpoint string, baud int) (transport.Transport, error)

// Config holds the session configuration.
type Config struct {
	// HandshakeTimeout bounds the wait for the boot-recovery announcement.
	HandshakeTimeout time.Duration

	// AgentReadyTimeout bounds the wait for the loaded agent's banner and
	// first prompt after the stage-2 upload.
	AgentReadyTimeout time.Duration

	// PromptTimeout bounds individual prompt waits during flashing and
	// speed negotiation.
	PromptTimeout time.Duration

	// EraseTimeout bounds each flash command's completion wait.
	EraseTimeout time.Duration

	// SettleDelay is the pause the device needs around a baud change.
	SettleDelay time.Duration

	// SpeedUp enables the optional post-load speed negotiation.
	SpeedUp bool

	// TargetBaud overrides the descriptor's high-speed rate (0 = use it).
	TargetBaud int

	// ChunkSize is the transfer block size for stage-2 and payloads.
	ChunkSize int

	// Progress observes byte-level transfer progress (optional).
	Progress framer.ProgressFunc

	// Logger receives structured stage events (optional).
	Logger logging.Logger

	// Dial opens the transport.
	Dial Dialer
}

func defaultConfig() Config {
	return Config{
		HandshakeTimeout:  30 * time.Second,
		AgentReadyTimeout: 30 * time.Second,
		PromptTimeout:     5 * time.Second,
		EraseTimeout:      120 * time.Second,
		SettleDelay:       2 * time.Second,
		SpeedUp:           true,
		ChunkSize:         framer.DefaultChunkSize,
		Dial: func(endpoint string, baud int) (transport.Transport, error) {
			return transport.Open(endpoint, baud)
		},
	}
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithHandshakeTimeout bounds the boot-signal wait. Default 30s.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.HandshakeTimeout = d
		}
	}
}

// WithAgentReadyTimeout bounds the post-load agent liveness wait.
func WithAgentReadyTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.AgentReadyTimeout = d
		}
	}
}

// WithPromptTimeout bounds individual prompt waits.
func WithPromptTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PromptTimeout = d
		}
	}
}

// WithEraseTimeout bounds flash completion waits. Default 120s.
func WithEraseTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.EraseTimeout = d
		}
	}
}

// WithSettleDelay sets the pause around baud changes.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.SettleDelay = d
		}
	}
}

// WithSpeedUp enables or disables speed negotiation. Default enabled.
func WithSpeedUp(enabled bool) Option {
	return func(c *Config) { c.SpeedUp = enabled }
}

// WithTargetBaud overrides the descriptor's high-speed rate.
func WithTargetBaud(baud int) Option {
	return func(c *Config) {
		if baud > 0 {
			c.TargetBaud = baud
		}
	}
}

// WithChunkSize sets the transfer block size.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithProgress sets the transfer progress callback. The callback is
// read-only with respect to session state and must return quickly.
func WithProgress(fn framer.ProgressFunc) Option {
	return func(c *Config) { c.Progress = fn }
}

// WithLogger sets the structured event logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithDialer replaces the transport dialer.
func WithDialer(d Dialer) Option {
	return func(c *Config) {
		if d != nil {
			c.Dial = d
		}
	}
}
