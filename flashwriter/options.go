package flashwriter

import (
	"time"

	"github.com/openbrick/socrescue/framer"
	"github.com/openbrick/socrescue/logging"
)

// Config holds the client configuration.
type Config struct {
	// ChunkSize is the payload block size per write.
	ChunkSize int

	// PromptTimeout bounds each sub-prompt wait.
	PromptTimeout time.Duration

	// SendTimeout bounds the wait for the agent's send marker.
	SendTimeout time.Duration

	// EraseTimeout bounds the completion wait. First writes to a region
	// may erase for up to two minutes before the agent answers.
	EraseTimeout time.Duration

	// Progress is called after each payload chunk (optional).
	Progress framer.ProgressFunc

	// Logger receives structured events (optional).
	Logger logging.Logger
}

func defaultConfig() Config {
	return Config{
		ChunkSize:     framer.DefaultChunkSize,
		PromptTimeout: 5 * time.Second,
		SendTimeout:   10 * time.Second,
		EraseTimeout:  120 * time.Second,
	}
}

// Option is a functional option for configuring the Client.
type Option func(*Config)

// WithChunkSize sets the payload block size per write.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithPromptTimeout bounds each sub-prompt wait.
func WithPromptTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PromptTimeout = d
		}
	}
}

// WithSendTimeout bounds the wait for the agent's send marker.
func WithSendTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.SendTimeout = d
		}
	}
}

// WithEraseTimeout bounds the completion wait, erase latency included.
func WithEraseTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.EraseTimeout = d
		}
	}
}

// WithProgress sets the per-chunk transfer progress callback.
func WithProgress(fn framer.ProgressFunc) Option {
	return func(c *Config) { c.Progress = fn }
}

// WithLogger sets the structured event logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
