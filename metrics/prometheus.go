package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linchenxuan/logship/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	_metricsChanSize     = 1 << 16
	_serviceName         = "logship"
	_healthCheckInterval = 30 * time.Second
	_pushTimeout         = 5 * time.Second
)

type metricType int

const (
	_metricTypeCounter metricType = iota
	_metricTypeGauge
)

type metricOpt struct {
	subsystem   string
	name        string
	constLabels map[string]string
}

func newMetricOpt(rc *Record, extLabels map[string]string) *metricOpt {
	opts := &metricOpt{
		subsystem:   promName(rc.Metrics().Group()),
		name:        promName(rc.Metrics().Name()),
		constLabels: make(map[string]string, len(rc.Dimensions())+len(extLabels)),
	}
	for k, v := range extLabels {
		opts.constLabels[k] = v
	}
	for k, v := range rc.Dimensions() {
		opts.constLabels[k] = v
	}
	return opts
}

func promName(s string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(s)
}

// promGauge keeps the running sum and count so averaged policies export the mean.
type promGauge struct {
	prometheus.Gauge
	value float64
	cnt   int
	set   bool
}

func (p *promGauge) merge(rc *Record) error {
	v := float64(rc.Value())
	switch rc.Metrics().Policy() {
	case Policy_Set:
		p.Set(v)
	case Policy_Sum:
		p.Add(v)
	case Policy_Max:
		if !p.set || v > p.value {
			p.value = v
			p.Set(v)
		}
	case Policy_Min:
		if !p.set || v < p.value {
			p.value = v
			p.Set(v)
		}
	case Policy_Avg, Policy_Stopwatch:
		raw, c := rc.RawData()
		p.value += float64(raw)
		p.cnt += c
		if p.cnt <= 0 {
			return fmt.Errorf("metrics(%s) count invalid", rc.Metrics().Name())
		}
		p.Set(p.value / float64(p.cnt))
	default:
		return fmt.Errorf("metrics(%s) policy invalid", rc.Metrics().Name())
	}
	p.set = true
	return nil
}

type metricWrapper struct {
	m  prometheus.Metric
	mt metricType
}

func (m *metricWrapper) merge(rc *Record) {
	switch m.mt {
	case _metricTypeGauge:
		if g, ok := m.m.(*promGauge); ok {
			if err := g.merge(rc); err != nil {
				log.Error().Err(err).Msg("prometheus merge")
			}
			return
		}
	case _metricTypeCounter:
		if c, ok := m.m.(prometheus.Counter); ok {
			c.Add(float64(rc.Value()))
			return
		}
	}
	log.Error().Str("promtype", fmt.Sprintf("%T", m.m)).
		Int("metrictype", int(m.mt)).Msg("prometheus merge failed")
}

// PrometheusReporterConfig configures the Prometheus reporter plugin.
type PrometheusReporterConfig struct {
	Tag               string            `mapstructure:"tag"`
	ListenAddr        string            `mapstructure:"listenAddr"` // empty: pick a free port on all interfaces
	MetricPath        string            `mapstructure:"metricPath"`
	UsePush           bool              `mapstructure:"usePush"`
	PushAddr          string            `mapstructure:"pushAddr"`
	PushIntervalSec   int               `mapstructure:"pushIntervalSec"`
	PushJobName       string            `mapstructure:"pushJobName"`
	ExtLabels         map[string]string `mapstructure:"extLabels"`
	EnableHealthCheck bool              `mapstructure:"enableHealthCheck"`
	HealthCheckPath   string            `mapstructure:"healthCheckPath"`
}

// DefaultPrometheusReporterConfig returns the defaults applied before decoding.
func DefaultPrometheusReporterConfig() *PrometheusReporterConfig {
	return &PrometheusReporterConfig{
		ListenAddr:      ":0",
		MetricPath:      "/metrics",
		PushIntervalSec: 15,
		PushJobName:     _serviceName,
		HealthCheckPath: "/health",
	}
}

// Validate checks the configuration.
func (c *PrometheusReporterConfig) Validate() error {
	if !strings.HasPrefix(c.MetricPath, "/") {
		return fmt.Errorf("metricPath must start with '/': %q", c.MetricPath)
	}
	if c.EnableHealthCheck && !strings.HasPrefix(c.HealthCheckPath, "/") {
		return fmt.Errorf("healthCheckPath must start with '/': %q", c.HealthCheckPath)
	}
	if c.UsePush {
		if c.PushAddr == "" {
			return errors.New("pushAddr is required when usePush is set")
		}
		if c.PushIntervalSec <= 0 {
			return fmt.Errorf("pushIntervalSec must be positive: %d", c.PushIntervalSec)
		}
	}
	return nil
}

func (c *PrometheusReporterConfig) extLabelsStr() string {
	keys := make([]string, 0, len(c.ExtLabels))
	for k := range c.ExtLabels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(":")
		sb.WriteString(c.ExtLabels[k])
		sb.WriteString(",")
	}
	return sb.String()
}

// PrometheusReporter aggregates records on one goroutine into a private
// registry, served over HTTP and optionally pushed to a push gateway.
type PrometheusReporter struct {
	cfg          *PrometheusReporterConfig
	extLabelsStr string
	registry     *prometheus.Registry
	factory      promauto.Factory
	promSvr      *http.Server
	addr         net.Addr
	pusher       *push.Pusher
	metricsChan  chan Record
	metrics      map[string]*metricWrapper
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	stopOnce     sync.Once

	startTime       time.Time
	lastHealthCheck atomic.Int64 // unix nanos
	healthStatus    atomic.Int32 // 0 healthy, 1 unhealthy
}

// NewPrometheusReporter creates and starts a reporter.
func NewPrometheusReporter(cfg *PrometheusReporterConfig) (*PrometheusReporter, error) {
	if cfg == nil {
		cfg = DefaultPrometheusReporterConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	reg := prometheus.NewRegistry()
	x := &PrometheusReporter{
		cfg:          cfg,
		extLabelsStr: cfg.extLabelsStr(),
		registry:     reg,
		factory:      promauto.With(reg),
		metricsChan:  make(chan Record, _metricsChanSize),
		metrics:      map[string]*metricWrapper{},
		ctx:          ctx,
		cancel:       cancel,
		startTime:    time.Now(),
	}
	if err := x.start(); err != nil {
		cancel()
		return nil, err
	}
	return x, nil
}

// FactoryName implements plugin.Plugin.
func (x *PrometheusReporter) FactoryName() string {
	return _prometheusFactoryName
}

// Report queues a record for aggregation. It never blocks; records are
// dropped when the aggregation channel is full.
func (x *PrometheusReporter) Report(r Record) {
	select {
	case x.metricsChan <- r:
	default:
		log.Error().Str("metric", r.Metrics().Name()).Msg("metrics chan full")
	}
}

// Addr returns the address the HTTP endpoint listens on.
func (x *PrometheusReporter) Addr() net.Addr {
	return x.addr
}

// Registry returns the private registry the reporter exports.
func (x *PrometheusReporter) Registry() *prometheus.Registry {
	return x.registry
}

func (x *PrometheusReporter) start() error {
	if err := x.startHTTPSvr(); err != nil {
		return err
	}
	x.startAggregate()
	if x.cfg.UsePush {
		x.startPusher()
	}
	x.startHealthCheck()
	return nil
}

// Stop shuts down the HTTP server and background goroutines. Safe to call
// more than once.
func (x *PrometheusReporter) Stop() {
	x.stopOnce.Do(func() {
		x.cancel()
		if x.promSvr != nil {
			if err := x.promSvr.Close(); err != nil {
				log.Error().Err(err).Msg("stop PromHttpSvr stop")
			}
		}
		x.wg.Wait()
	})
}

func (x *PrometheusReporter) startPusher() {
	x.pusher = push.New(x.cfg.PushAddr, x.cfg.PushJobName).Gatherer(x.registry)
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		log.Info().Str("addr", x.cfg.PushAddr).Msg("prometheus pusher started")
		t := time.NewTicker(time.Second * time.Duration(x.cfg.PushIntervalSec))
		defer t.Stop()
		for {
			select {
			case <-x.ctx.Done():
				log.Info().Msg("prometheus pusher end")
				return
			case <-t.C:
				ctx, cancel := context.WithTimeout(x.ctx, _pushTimeout)
				if err := x.pusher.PushContext(ctx); err != nil {
					log.Error().Err(err).Msg("prometheus push")
				}
				cancel()
			}
		}
	}()
}

func (x *PrometheusReporter) startHTTPSvr() error {
	l, err := net.Listen("tcp", x.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("prometheus listen %s: %w", x.cfg.ListenAddr, err)
	}
	x.addr = l.Addr()

	mux := http.NewServeMux()
	mux.Handle(x.cfg.MetricPath, promhttp.HandlerFor(x.registry, promhttp.HandlerOpts{}))
	if x.cfg.EnableHealthCheck {
		mux.HandleFunc(x.cfg.HealthCheckPath, x.healthCheckHandler)
		log.Info().Str("path", x.cfg.HealthCheckPath).Msg("health check endpoint enabled")
	}

	x.promSvr = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		if err := x.promSvr.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("prometheus http serve")
		}
	}()
	log.Info().Str("addr", l.Addr().String()).Str("path", x.cfg.MetricPath).Msg("prometheus http start listen on")
	return nil
}

func (x *PrometheusReporter) startAggregate() {
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		for {
			select {
			case rc := <-x.metricsChan:
				x.merge(&rc)
			case <-x.ctx.Done():
				return
			}
		}
	}()
}

func (x *PrometheusReporter) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := time.Now()
	response := map[string]any{
		"service":   _serviceName,
		"timestamp": now.Format(time.RFC3339),
	}
	status := http.StatusOK
	if x.healthStatus.Load() == 0 {
		response["status"] = "healthy"
		response["uptime"] = now.Sub(x.startTime).String()
	} else {
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
		response["message"] = "metrics reporter is falling behind"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Warn().Err(err).Msg("health check response")
	}
}

func (x *PrometheusReporter) startHealthCheck() {
	if !x.cfg.EnableHealthCheck {
		return
	}
	x.lastHealthCheck.Store(time.Now().UnixNano())

	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		t := time.NewTicker(_healthCheckInterval)
		defer t.Stop()
		for {
			select {
			case <-x.ctx.Done():
				return
			case <-t.C:
				x.performHealthCheck()
			}
		}
	}()
}

// performHealthCheck marks the reporter unhealthy while the aggregation
// channel is more than 90% full.
func (x *PrometheusReporter) performHealthCheck() {
	chanUsage := float64(len(x.metricsChan)) / float64(cap(x.metricsChan))
	since := time.Since(time.Unix(0, x.lastHealthCheck.Load()))

	if chanUsage > 0.9 {
		x.healthStatus.Store(1)
		log.Warn().
			Float64("chan_usage", chanUsage).
			Dur("since_last_check", since).
			Msg("Health check failed - high channel usage")
	} else {
		x.healthStatus.Store(0)
		log.Debug().
			Float64("chan_usage", chanUsage).
			Dur("since_last_check", since).
			Msg("Health check passed")
	}
	x.lastHealthCheck.Store(time.Now().UnixNano())
}

// merge runs on the aggregation goroutine only.
func (x *PrometheusReporter) merge(rc *Record) {
	key := x.getFullName(rc)
	if m, exist := x.metrics[key]; exist {
		m.merge(rc)
		return
	}

	o := newMetricOpt(rc, x.cfg.ExtLabels)
	var w *metricWrapper
	switch m := rc.Metrics().(type) {
	case Counter:
		c := x.factory.NewCounter(prometheus.CounterOpts{
			Subsystem:   o.subsystem,
			Name:        o.name,
			ConstLabels: o.constLabels,
		})
		w = &metricWrapper{m: c, mt: _metricTypeCounter}
	case StopWatch, Gauge:
		g := &promGauge{Gauge: x.factory.NewGauge(prometheus.GaugeOpts{
			Subsystem:   o.subsystem,
			Name:        o.name,
			ConstLabels: o.constLabels,
		})}
		w = &metricWrapper{m: g, mt: _metricTypeGauge}
	default:
		log.Error().Str("metrictype", fmt.Sprintf("%T", m)).Msg("prometheus merge unknown")
		return
	}
	x.metrics[key] = w
	w.merge(rc)
}

func (x *PrometheusReporter) getFullName(rc *Record) string {
	var sb strings.Builder
	sb.Grow(128)
	sb.WriteString(rc.Metrics().Group())
	sb.WriteString("*")
	sb.WriteString(rc.Metrics().Name())
	sb.WriteString("*")
	sb.WriteString(x.extLabelsStr)

	keys := make([]string, 0, len(rc.Dimensions()))
	for k := range rc.Dimensions() {
		if _, ok := x.cfg.ExtLabels[k]; ok {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(":")
		sb.WriteString(rc.Dimensions()[k])
		sb.WriteString(",")
	}
	return sb.String()
}
