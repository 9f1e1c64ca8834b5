package udp

import (
	"errors"
	"fmt"

	"github.com/linchenxuan/logship/plugin"
	"github.com/linchenxuan/logship/transport"
)

type factory struct{}

var _ plugin.Factory = (*factory)(nil)

// NewFactory creates a UDP transport plugin factory.
func NewFactory() plugin.Factory {
	return &factory{}
}

func (f *factory) Type() plugin.Type {
	return plugin.Transport
}

func (f *factory) Name() string {
	return Name
}

func (f *factory) ConfigType() any {
	return DefaultCfg()
}

func (f *factory) Setup(cfgAny any) (plugin.Plugin, error) {
	cfg, ok := cfgAny.(*Cfg)
	if !ok {
		return nil, errors.New("udp setup failed: invalid config type")
	}
	ins, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("udp setup failed: %w", err)
	}
	return ins, nil
}

func (f *factory) Destroy(p plugin.Plugin) {
	if tp, ok := p.(*transport.Reconnector); ok && tp != nil {
		_ = tp.Close()
	}
}
