// Package logship assembles a log-shipping pipeline from configuration: the
// diagnostic logger, the plugin manager with every built-in transport and
// metrics reporter, and the shipper sending through the selected transport.
package logship

import (
	"errors"
	"fmt"

	"github.com/linchenxuan/logship/config"
	"github.com/linchenxuan/logship/log"
	"github.com/linchenxuan/logship/metrics"
	"github.com/linchenxuan/logship/plugin"
	"github.com/linchenxuan/logship/shipper"
	"github.com/linchenxuan/logship/transport"
	"github.com/linchenxuan/logship/transport/kcp"
	"github.com/linchenxuan/logship/transport/memory"
	"github.com/linchenxuan/logship/transport/tcp"
	"github.com/linchenxuan/logship/transport/udp"
)

// Logship is a running pipeline.
type Logship struct {
	Logger        *log.StdLogger
	PluginManager *plugin.Manager
	Transport     transport.Transport
	Shipper       *shipper.Shipper
}

// RegisterBuiltinFactories registers every transport and metrics factory
// shipped with logship.
func RegisterBuiltinFactories(m *plugin.Manager) {
	m.RegisterFactory(udp.NewFactory())
	m.RegisterFactory(tcp.NewFactory())
	m.RegisterFactory(kcp.NewFactory())
	m.RegisterFactory(memory.NewFactory())
	m.RegisterFactory(metrics.NewPrometheusFactory())
}

// New builds and starts a pipeline. The logger built from cfg.Log becomes
// the package default logger.
func New(cfg *config.Config, opts ...shipper.Option) (*Logship, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := log.NewLogger(&cfg.Log)
	log.SetDefaultLogger(logger)

	pm := plugin.NewManager(config.DecodeHooks()...)
	RegisterBuiltinFactories(pm)
	if err := pm.SetupPlugins(cfg.Plugin); err != nil {
		pm.DestroyPlugins()
		return nil, err
	}

	tr, err := selectTransport(pm, cfg.Transport)
	if err != nil {
		pm.DestroyPlugins()
		return nil, err
	}

	var reporters []metrics.Reporter
	for _, p := range pm.Plugins(plugin.Metrics) {
		if r, ok := p.(metrics.Reporter); ok {
			reporters = append(reporters, r)
		}
	}
	metrics.SetMetricsReporters(reporters)

	s, err := shipper.New(&cfg.Shipper, tr, append([]shipper.Option{shipper.WithLogger(logger)}, opts...)...)
	if err != nil {
		metrics.SetMetricsReporters(nil)
		pm.DestroyPlugins()
		return nil, err
	}

	logger.Info().Str("transport", cfg.Transport).Int("reporters", len(reporters)).Msg("logship started")
	return &Logship{
		Logger:        logger,
		PluginManager: pm,
		Transport:     tr,
		Shipper:       s,
	}, nil
}

func selectTransport(pm *plugin.Manager, name string) (transport.Transport, error) {
	p, err := pm.GetPlugin(plugin.Transport, name)
	if err != nil {
		return nil, err
	}
	tr, ok := p.(transport.Transport)
	if !ok {
		return nil, fmt.Errorf("plugin %q is not a transport: %T", name, p)
	}
	return tr, nil
}

// Log queues text for delivery.
func (l *Logship) Log(text string) error {
	return l.Shipper.Log(text)
}

// Stop closes the shipper, then every plugin, then flushes and closes the
// diagnostic log appenders. Safe to call more than once.
func (l *Logship) Stop() error {
	err := l.Shipper.Close()
	if errors.Is(err, transport.ErrClosed) {
		err = nil
	}
	metrics.SetMetricsReporters(nil)
	l.PluginManager.DestroyPlugins()
	l.Logger.Refresh()
	l.Logger.Close()
	return err
}
