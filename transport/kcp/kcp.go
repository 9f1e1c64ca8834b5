// Package kcp sends frames over a KCP session, a reliable ordered protocol on
// top of UDP, with optional forward error correction and AES encryption.
package kcp

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/xtaci/kcp-go/v5"
	"golang.org/x/crypto/pbkdf2"

	"github.com/linchenxuan/logship/transport"
)

// Name is the transport and factory name.
const Name = "kcp"

const (
	_pbkdf2Iter   = 4096
	_aesKeyLen    = 32
	_defaultSalt  = "logship-kcp"
	_maxShards    = 256
	_defaultWnd   = 128
	_noDelayIntMs = 20
)

// Cfg configures the KCP transport. A non-empty Key enables AES encryption
// with a key derived from Key and Salt; the collector must use the same pair.
type Cfg struct {
	Tag                   string `mapstructure:"tag"`
	transport.EndpointCfg `mapstructure:",squash"`
	Key                   string `mapstructure:"key"`
	Salt                  string `mapstructure:"salt"`
	DataShards            int    `mapstructure:"dataShards"`
	ParityShards          int    `mapstructure:"parityShards"`
	NoDelay               bool   `mapstructure:"noDelay"`
	WindowSize            int    `mapstructure:"windowSize"`
}

// DefaultCfg returns the defaults applied before decoding.
func DefaultCfg() *Cfg {
	return &Cfg{
		EndpointCfg: transport.DefaultEndpointCfg(),
		Salt:        _defaultSalt,
		WindowSize:  _defaultWnd,
	}
}

// Validate checks the configuration.
func (c *Cfg) Validate() error {
	if err := c.EndpointCfg.Validate(); err != nil {
		return err
	}
	if c.DataShards < 0 || c.ParityShards < 0 || c.DataShards+c.ParityShards > _maxShards {
		return fmt.Errorf("invalid FEC shards: data=%d parity=%d", c.DataShards, c.ParityShards)
	}
	if c.ParityShards > 0 && c.DataShards == 0 {
		return errors.New("parityShards requires dataShards")
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("windowSize must be positive: %d", c.WindowSize)
	}
	return nil
}

// DeriveKey stretches a pre-shared key into an AES-256 key.
func DeriveKey(key, salt string) []byte {
	return pbkdf2.Key([]byte(key), []byte(salt), _pbkdf2Iter, _aesKeyLen, sha256.New)
}

type dialer struct {
	cfg   *Cfg
	block kcp.BlockCrypt
}

// Dial opens a session. KCP has no handshake, so as with UDP an unreachable
// collector is only noticed by later writes timing out.
func (d *dialer) Dial(ctx context.Context) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ip, err := transport.ResolveFirst(ctx, d.cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", d.cfg.Host, err)
	}

	raddr := (&transport.EndpointCfg{Host: ip.String(), Port: d.cfg.Port}).Addr()
	sess, err := kcp.DialWithOptions(raddr, d.block, d.cfg.DataShards, d.cfg.ParityShards)
	if err != nil {
		return nil, err
	}
	sess.SetWindowSize(d.cfg.WindowSize, d.cfg.WindowSize)
	if d.cfg.NoDelay {
		sess.SetNoDelay(1, _noDelayIntMs, 2, 1)
	}
	return transport.NewDeadlineConn(sess, d.cfg.WriteTimeout()), nil
}

func (d *dialer) Addr() string {
	return d.cfg.Addr()
}

// New returns an unconnected KCP transport.
func New(cfg *Cfg, opts ...transport.ReconnectorOption) (*transport.Reconnector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kcp config: %w", err)
	}

	d := &dialer{cfg: cfg}
	if cfg.Key != "" {
		block, err := kcp.NewAESBlockCrypt(DeriveKey(cfg.Key, cfg.Salt))
		if err != nil {
			return nil, fmt.Errorf("kcp cipher: %w", err)
		}
		d.block = block
	}
	return transport.NewReconnector(Name, d, cfg.ReconnectInterval(), opts...), nil
}
