// Package tcp sends frames over a TCP stream using RFC 6587 octet counting:
// each frame is prefixed with its length in ASCII decimal and a space.
package tcp

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/linchenxuan/logship/transport"
)

// Name is the transport and factory name.
const Name = "tcp"

// Cfg configures the TCP transport.
type Cfg struct {
	Tag                   string `mapstructure:"tag"`
	transport.EndpointCfg `mapstructure:",squash"`
	KeepAliveSec          int `mapstructure:"keepAliveSec"`
}

// DefaultCfg returns the defaults applied before decoding.
func DefaultCfg() *Cfg {
	return &Cfg{EndpointCfg: transport.DefaultEndpointCfg(), KeepAliveSec: 30}
}

// Validate checks the configuration.
func (c *Cfg) Validate() error {
	if err := c.EndpointCfg.Validate(); err != nil {
		return err
	}
	if c.KeepAliveSec < 0 {
		return fmt.Errorf("keepAliveSec must not be negative: %d", c.KeepAliveSec)
	}
	return nil
}

// octetConn writes "LEN SP FRAME" in a single write per frame.
type octetConn struct {
	conn    io.WriteCloser
	scratch []byte
}

func (c *octetConn) Write(p []byte) (int, error) {
	c.scratch = strconv.AppendInt(c.scratch[:0], int64(len(p)), 10)
	c.scratch = append(c.scratch, ' ')
	c.scratch = append(c.scratch, p...)
	if _, err := c.conn.Write(c.scratch); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *octetConn) Close() error {
	return c.conn.Close()
}

type dialer struct {
	cfg *Cfg
}

func (d *dialer) Dial(ctx context.Context) (io.WriteCloser, error) {
	nd := net.Dialer{Timeout: d.cfg.DialTimeout()}
	if d.cfg.KeepAliveSec > 0 {
		nd.KeepAlive = time.Duration(d.cfg.KeepAliveSec) * time.Second
	}
	conn, err := nd.DialContext(ctx, "tcp", d.cfg.Addr())
	if err != nil {
		return nil, err
	}
	return &octetConn{conn: transport.NewDeadlineConn(conn, d.cfg.WriteTimeout())}, nil
}

func (d *dialer) Addr() string {
	return d.cfg.Addr()
}

// New returns an unconnected TCP transport.
func New(cfg *Cfg, opts ...transport.ReconnectorOption) (*transport.Reconnector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tcp config: %w", err)
	}
	return transport.NewReconnector(Name, &dialer{cfg: cfg}, cfg.ReconnectInterval(), opts...), nil
}
