package metrics

import (
	"fmt"

	"github.com/linchenxuan/logship/log"
	"github.com/linchenxuan/logship/plugin"
)

const _prometheusFactoryName = "prometheus"

type prometheusFactory struct{}

// NewPrometheusFactory returns the plugin factory for PrometheusReporter.
func NewPrometheusFactory() plugin.Factory {
	return &prometheusFactory{}
}

func (f *prometheusFactory) Type() plugin.Type {
	return plugin.Metrics
}

func (f *prometheusFactory) Name() string {
	return _prometheusFactoryName
}

func (f *prometheusFactory) ConfigType() any {
	return DefaultPrometheusReporterConfig()
}

func (f *prometheusFactory) Setup(cfgAny any) (plugin.Plugin, error) {
	cfg, ok := cfgAny.(*PrometheusReporterConfig)
	if !ok {
		return nil, fmt.Errorf("prometheus: unexpected config type %T", cfgAny)
	}
	return NewPrometheusReporter(cfg)
}

func (f *prometheusFactory) Destroy(p plugin.Plugin) {
	prom, ok := p.(*PrometheusReporter)
	if !ok {
		log.Error().Str("type", fmt.Sprintf("%T", p)).Msg("prometheus destroy: unexpected plugin")
		return
	}
	prom.Stop()
}
