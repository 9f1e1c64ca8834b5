// Package config loads logship configuration from TOML or YAML files.
//
// A file has three parts: `log` (log.LogCfg), `shipper` (shipper.Config plus
// the name of the transport to use) and `plugin`, which is handed to the
// plugin manager as is:
//
//	transport = "udp"
//
//	[shipper]
//	queueCapacity = 4096
//	enqueueTimeoutMs = 100
//
//	[plugin.transport.udp]
//	host = "collector.internal"
//	port = 1514
//
//	[plugin.metrics.prometheus]
//	listenAddr = ":9100"
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/linchenxuan/logship/log"
	"github.com/linchenxuan/logship/shipper"
)

// DefaultTransport is used when the file names none.
const DefaultTransport = "udp"

// Config is the whole process configuration.
type Config struct {
	// Transport is the plugin key (tag or factory name) of the transport
	// instance the shipper sends through.
	Transport string         `mapstructure:"transport"`
	Log       log.LogCfg     `mapstructure:"log"`
	Shipper   shipper.Config `mapstructure:"shipper"`
	Plugin    map[string]any `mapstructure:"plugin"`
}

// Default returns a config shipping over UDP to 127.0.0.1:1514.
func Default() *Config {
	return &Config{
		Transport: DefaultTransport,
		Log:       log.DefaultCfg(),
		Shipper:   *shipper.DefaultConfig(),
	}
}

// Validate checks every section and fills in the plugin entry for the
// selected transport when the file has none, so it is built with defaults.
func (c *Config) Validate() error {
	if c.Transport == "" {
		return errors.New("transport cannot be empty")
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Shipper.Validate(); err != nil {
		return fmt.Errorf("shipper: %w", err)
	}
	c.transportSection()
	return nil
}

// DecodeHooks are the hooks applied to every section, plugin configs included.
func DecodeHooks() []mapstructure.DecodeHookFunc {
	return []mapstructure.DecodeHookFunc{
		log.LevelHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	}
}

// Load reads path and decodes it over the defaults. The format is chosen by
// extension: .toml, .yaml or .yml.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	raw := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(content), &raw); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	cfg, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// Decode decodes raw over Default and validates the result.
func Decode(raw map[string]any) (*Config, error) {
	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(DecodeHooks()...),
		Result:     cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetTransportOption sets key in the plugin config of the selected
// transport, for command-line overrides.
func (c *Config) SetTransportOption(key string, v any) {
	c.transportSection()[key] = v
}

// transportSection returns plugin.transport.<Transport>, creating it when
// missing. An instance addressed by tag is found by scanning for it.
func (c *Config) transportSection() map[string]any {
	if c.Plugin == nil {
		c.Plugin = map[string]any{}
	}
	transports, ok := c.Plugin["transport"].(map[string]any)
	if !ok {
		transports = map[string]any{}
		c.Plugin["transport"] = transports
	}

	if section, ok := transports[c.Transport].(map[string]any); ok {
		return section
	}
	for _, v := range transports {
		if section, ok := v.(map[string]any); ok && section["tag"] == c.Transport {
			return section
		}
	}
	section := map[string]any{}
	transports[c.Transport] = section
	return section
}
