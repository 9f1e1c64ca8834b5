package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/linchenxuan/logship"
	"github.com/linchenxuan/logship/config"
	"github.com/linchenxuan/logship/log"
)

// Exit codes.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

type options struct {
	configFile        string
	transport         string
	host              string
	port              int
	reconnectInterval time.Duration
	enqueueTimeout    time.Duration
	queueCapacity     int
	maxSendAttempts   int
	logLevel          string
	logFile           string
	metricsAddr       string
}

func newRootCmd() (*cobra.Command, *options) {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "logship",
		Short: "Ship log messages to a syslog collector",
		Long: `logship prompts for a number of messages and ships that many
timestamped events to the configured collector. Enter 0, press Ctrl+D or
send SIGINT to stop.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "config file (.toml, .yaml)")
	f.StringVarP(&opts.transport, "transport", "t", config.DefaultTransport, "transport plugin: udp, tcp, kcp, memory or a configured tag")
	f.StringVar(&opts.host, "host", "", "collector host")
	f.IntVarP(&opts.port, "port", "p", 0, "collector port")
	f.DurationVar(&opts.reconnectInterval, "reconnect-interval", 100*time.Millisecond, "delay between connect attempts")
	f.DurationVar(&opts.enqueueTimeout, "enqueue-timeout", 100*time.Millisecond, "how long Log waits for room in a full queue")
	f.IntVar(&opts.queueCapacity, "queue-capacity", 0, "queue bound, 0 for unbounded")
	f.IntVar(&opts.maxSendAttempts, "max-send-attempts", 0, "drop an event after this many failed sends, 0 retries forever")
	f.StringVar(&opts.logLevel, "log-level", "info", "diagnostic log level")
	f.StringVar(&opts.logFile, "log-file", "", "also write diagnostics to this file, rotated at 50 MiB")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd, opts
}

// buildConfig loads the config file, if any, and applies the flags the user set.
func buildConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		loaded, err := config.Load(opts.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("transport") {
		cfg.Transport = opts.transport
	}
	if changed("log-level") {
		cfg.Log.LogLevel = log.ParseLevel(opts.logLevel)
	}
	if opts.logFile != "" {
		cfg.Log.FileAppender = true
		cfg.Log.FilePath = opts.logFile
	}
	if changed("enqueue-timeout") {
		cfg.Shipper.EnqueueTimeoutMs = int(opts.enqueueTimeout.Milliseconds())
	}
	if changed("queue-capacity") {
		cfg.Shipper.QueueCapacity = opts.queueCapacity
	}
	if changed("max-send-attempts") {
		cfg.Shipper.MaxSendAttempts = opts.maxSendAttempts
	}
	if changed("host") {
		cfg.SetTransportOption("host", opts.host)
	}
	if changed("port") {
		cfg.SetTransportOption("port", opts.port)
	}
	if changed("reconnect-interval") {
		cfg.SetTransportOption("reconnectIntervalMs", int(opts.reconnectInterval.Milliseconds()))
	}
	if changed("metrics-addr") {
		if cfg.Plugin == nil {
			cfg.Plugin = map[string]any{}
		}
		cfg.Plugin["metrics"] = map[string]any{
			"prometheus": map[string]any{"listenAddr": opts.metricsAddr},
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run starts the pipeline and drives the prompt until it ends, then stops
// the pipeline. SIGINT and SIGTERM end the prompt like EOF does.
func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := logship.New(cfg)
	if err != nil {
		return err
	}

	reader, closeReader, err := newLineReader(in, out)
	if err != nil {
		_ = app.Stop()
		return err
	}
	go func() {
		<-ctx.Done()
		closeReader()
	}()

	promptErr := runPrompt(ctx, reader, out, func(n int) error {
		return shipTimestamps(app, n)
	})
	closeReader()

	if err := app.Stop(); err != nil {
		app.Logger.Warn().Err(err).Msg("stop")
	}
	return promptErr
}

// shipTimestamps queues n events whose text is the current UTC time.
func shipTimestamps(app *logship.Logship, n int) error {
	for i := 0; i < n; i++ {
		if err := app.Log(time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("message %d of %d: %w", i+1, n, err)
		}
	}
	return nil
}

// newLineReader uses readline on a terminal and plain line scanning otherwise.
func newLineReader(in io.Reader, out io.Writer) (lineReader, func(), error) {
	if f, ok := in.(*os.File); ok && readline.IsTerminal(int(f.Fd())) {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "> ",
			Stdin:           f,
			Stdout:          out,
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create readline instance: %w", err)
		}
		return &readlineReader{rl: rl}, func() { _ = rl.Close() }, nil
	}
	sr := newScanReader(in)
	return sr, sr.Close, nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd, _ := newRootCmd()
	if err := cmd.Execute(); err != nil {
		return ExitCodeError
	}
	return ExitCodeSuccess
}
