package shipper

import (
	"fmt"
	"math"
	"time"

	"github.com/linchenxuan/logship/wire"
)

// Rate limit modes.
const (
	RateLimitToken = "token"
	RateLimitLeaky = "leaky"
)

// Config configures a Shipper. Settings are fixed for the shipper's lifetime.
type Config struct {
	// QueueCapacity bounds the event queue. 0 means unbounded.
	QueueCapacity int `mapstructure:"queueCapacity"`
	// EnqueueTimeoutMs is how long Log waits for room in a full queue.
	EnqueueTimeoutMs int `mapstructure:"enqueueTimeoutMs"`
	// DropOnFull makes Log swallow queue-full errors.
	DropOnFull bool `mapstructure:"dropOnFull"`
	// MaxSendAttempts abandons an event after that many failed sends.
	// 0 retries forever.
	MaxSendAttempts int `mapstructure:"maxSendAttempts"`
	// SendRateLimit caps frames per second. 0 disables pacing.
	SendRateLimit float64 `mapstructure:"sendRateLimit"`
	SendRateBurst int     `mapstructure:"sendRateBurst"`
	RateLimitMode string  `mapstructure:"rateLimitMode"`
	// BufferSize is the initial capacity of the frame buffer.
	BufferSize int         `mapstructure:"bufferSize"`
	Header     wire.Header `mapstructure:"header"`
}

// DefaultConfig returns an unbounded queue, a 100ms enqueue timeout, unlimited
// retries and the default frame header.
func DefaultConfig() *Config {
	return &Config{
		EnqueueTimeoutMs: 100,
		RateLimitMode:    RateLimitToken,
		BufferSize:       1024,
		Header:           wire.DefaultHeader(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queueCapacity must not be negative: %d", c.QueueCapacity)
	}
	if c.EnqueueTimeoutMs < 0 {
		return fmt.Errorf("enqueueTimeoutMs must not be negative: %d", c.EnqueueTimeoutMs)
	}
	if c.MaxSendAttempts < 0 {
		return fmt.Errorf("maxSendAttempts must not be negative: %d", c.MaxSendAttempts)
	}
	if c.SendRateLimit < 0 {
		return fmt.Errorf("sendRateLimit must not be negative: %v", c.SendRateLimit)
	}
	if c.SendRateLimit > 0 {
		switch c.RateLimitMode {
		case RateLimitToken, "":
		case RateLimitLeaky:
			// the leaky bucket counts whole slots per second
			if c.SendRateLimit < 1 || c.SendRateLimit != math.Trunc(c.SendRateLimit) {
				return fmt.Errorf("leaky sendRateLimit must be a whole number >= 1: %v", c.SendRateLimit)
			}
		default:
			return fmt.Errorf("unknown rateLimitMode %q", c.RateLimitMode)
		}
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("bufferSize must not be negative: %d", c.BufferSize)
	}
	return c.Header.Validate()
}

// EnqueueTimeout returns EnqueueTimeoutMs as a duration.
func (c *Config) EnqueueTimeout() time.Duration {
	return time.Duration(c.EnqueueTimeoutMs) * time.Millisecond
}
