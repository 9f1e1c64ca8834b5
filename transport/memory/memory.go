package memory

import (
	"fmt"
	"time"

	"github.com/linchenxuan/logship/log"
	"github.com/linchenxuan/logship/transport"
	"github.com/linchenxuan/logship/wire"
)

// Name is the transport and factory name.
const Name = "memory"

// Cfg configures the memory transport.
type Cfg struct {
	Tag                 string `mapstructure:"tag"`
	ReconnectIntervalMs int    `mapstructure:"reconnectIntervalMs"`
	MaxFrames           int    `mapstructure:"maxFrames"`
	// Echo logs every frame's text at info level.
	Echo bool `mapstructure:"echo"`
}

// DefaultCfg returns the defaults applied before decoding.
func DefaultCfg() *Cfg {
	return &Cfg{
		ReconnectIntervalMs: transport.DefaultReconnectIntervalMs,
		MaxFrames:           1024,
	}
}

// Validate checks the configuration.
func (c *Cfg) Validate() error {
	if c.ReconnectIntervalMs < 0 {
		return fmt.Errorf("reconnectIntervalMs must not be negative: %d", c.ReconnectIntervalMs)
	}
	return nil
}

// Transport is a Reconnector writing into a Sink.
type Transport struct {
	*transport.Reconnector
	sink *Sink
}

// New returns a memory transport over a fresh sink.
func New(cfg *Cfg, opts ...transport.ReconnectorOption) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid memory config: %w", err)
	}
	sink := NewSink(cfg.MaxFrames)
	if cfg.Echo {
		sink.OnFrame(func(frame []byte) {
			text, _ := wire.Payload(frame)
			log.Info().Str("transport", Name).Str("text", string(text)).Msg("frame")
		})
	}
	return NewWithSink(sink, time.Duration(cfg.ReconnectIntervalMs)*time.Millisecond, opts...), nil
}

// NewWithSink returns a memory transport writing into sink.
func NewWithSink(sink *Sink, interval time.Duration, opts ...transport.ReconnectorOption) *Transport {
	return &Transport{
		Reconnector: transport.NewReconnector(Name, sink, interval, opts...),
		sink:        sink,
	}
}

// Sink returns the sink frames are recorded in.
func (t *Transport) Sink() *Sink {
	return t.sink
}
