// Package udp sends each frame as one datagram on a connected UDP socket.
package udp

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/linchenxuan/logship/transport"
)

// Name is the transport and factory name.
const Name = "udp"

// Cfg configures the UDP transport.
type Cfg struct {
	Tag                   string `mapstructure:"tag"`
	transport.EndpointCfg `mapstructure:",squash"`
}

// DefaultCfg returns the defaults applied before decoding.
func DefaultCfg() *Cfg {
	return &Cfg{EndpointCfg: transport.DefaultEndpointCfg()}
}

type dialer struct {
	cfg *Cfg
}

// Dial resolves the host, keeps the first address, and connects a UDP socket
// to it. Connecting a UDP socket sends nothing; unreachable collectors show
// up as write errors on later sends.
func (d *dialer) Dial(ctx context.Context) (io.WriteCloser, error) {
	if t := d.cfg.DialTimeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	ip, err := transport.ResolveFirst(ctx, d.cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", d.cfg.Host, err)
	}

	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "udp", net.JoinHostPort(ip.String(), strconv.Itoa(d.cfg.Port)))
	if err != nil {
		return nil, err
	}
	return transport.NewDeadlineConn(conn, d.cfg.WriteTimeout()), nil
}

func (d *dialer) Addr() string {
	return d.cfg.Addr()
}

// New returns an unconnected UDP transport.
func New(cfg *Cfg, opts ...transport.ReconnectorOption) (*transport.Reconnector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid udp config: %w", err)
	}
	return transport.NewReconnector(Name, &dialer{cfg: cfg}, cfg.ReconnectInterval(), opts...), nil
}
