package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Default endpoint settings.
const (
	DefaultHost                = "127.0.0.1"
	DefaultPort                = 1514
	DefaultReconnectIntervalMs = 100
	DefaultWriteTimeoutMs      = 1000
	DefaultDialTimeoutMs       = 3000
)

// EndpointCfg is the destination and timing shared by the network transports.
type EndpointCfg struct {
	Host                string `mapstructure:"host"`
	Port                int    `mapstructure:"port"`
	ReconnectIntervalMs int    `mapstructure:"reconnectIntervalMs"`
	WriteTimeoutMs      int    `mapstructure:"writeTimeoutMs"`
	DialTimeoutMs       int    `mapstructure:"dialTimeoutMs"`
}

// DefaultEndpointCfg returns 127.0.0.1:1514 with a 100ms reconnect interval.
func DefaultEndpointCfg() EndpointCfg {
	return EndpointCfg{
		Host:                DefaultHost,
		Port:                DefaultPort,
		ReconnectIntervalMs: DefaultReconnectIntervalMs,
		WriteTimeoutMs:      DefaultWriteTimeoutMs,
		DialTimeoutMs:       DefaultDialTimeoutMs,
	}
}

// Validate checks the endpoint settings.
func (c *EndpointCfg) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.ReconnectIntervalMs < 0 {
		return fmt.Errorf("reconnectIntervalMs must not be negative: %d", c.ReconnectIntervalMs)
	}
	if c.WriteTimeoutMs < 0 {
		return fmt.Errorf("writeTimeoutMs must not be negative: %d", c.WriteTimeoutMs)
	}
	if c.DialTimeoutMs < 0 {
		return fmt.Errorf("dialTimeoutMs must not be negative: %d", c.DialTimeoutMs)
	}
	return nil
}

// Addr returns host:port.
func (c *EndpointCfg) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *EndpointCfg) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalMs) * time.Millisecond
}

func (c *EndpointCfg) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

func (c *EndpointCfg) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMs) * time.Millisecond
}
