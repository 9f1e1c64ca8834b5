package transport

import (
	"context"
	"net"
	"time"
)

// DeadlineConn sets a write deadline before every write so a stalled peer
// turns into a send failure instead of a hang.
type DeadlineConn struct {
	net.Conn
	timeout time.Duration
}

// NewDeadlineConn wraps c. A zero timeout disables the deadline.
func NewDeadlineConn(c net.Conn, timeout time.Duration) *DeadlineConn {
	return &DeadlineConn{Conn: c, timeout: timeout}
}

func (c *DeadlineConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}

// ResolveFirst resolves host and returns the first address the resolver
// reports. Literal IPs are returned as is.
func ResolveFirst(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no addresses", Name: host, IsNotFound: true}
	}
	return addrs[0].IP, nil
}
