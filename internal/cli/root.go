// Package cli implements the bthttp command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bachuetech/bt-http-utils/httpclient"
	"github.com/bachuetech/bt-http-utils/logger"
	"github.com/bachuetech/bt-http-utils/observability"
	"github.com/bachuetech/bt-http-utils/version"
)

const cliName = "bthttp"

// GlobalOptions holds the flags shared by every command.
type GlobalOptions struct {
	ConfigFile   string
	EnvFile      string
	LogLevel     string
	LogFormat    string
	CertDir      string
	Danger       []string
	AltDNS       bool
	Cookies      bool
	Timeout      time.Duration
	OTLPEndpoint string
}

// StatusError is returned after an HTTP error status was printed.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server answered with status %d", e.StatusCode)
}

// NewRootCommand creates the bthttp command with all subcommands.
func NewRootCommand() *cobra.Command {
	opts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:   cliName,
		Short: "Send HTTP requests with URL templates, local trust anchors and streaming",
		Long: `bthttp sends HTTP requests through the bt-http-utils client.

URL placeholders such as {id} are filled from -p parameters; for GET the
remaining parameters become the query string. Certificates found in the
local certificate directory are trusted in addition to the system roots.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addGlobalFlags(cmd, opts)

	cmd.AddCommand(
		NewRequestCommand(opts),
		NewStreamCommand(opts),
		NewVersionCommand(),
	)
	return cmd
}

// addGlobalFlags registers the persistent flags shared by every command.
func addGlobalFlags(cmd *cobra.Command, opts *GlobalOptions) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (default: ./cmd/bthttp/config.yml, ./config/config.yml or ./config.yml)")
	pf.StringVar(&opts.EnvFile, "env-file", "", ".env file loaded before reading BT_* variables")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error, disabled)")
	pf.StringVar(&opts.LogFormat, "log-format", "", "log format (console, json)")
	pf.StringVar(&opts.CertDir, "cert-dir", "", "directory of trusted *.pem certificates (default: $BTLOCALPEMCERTIFICATES or ./certs)")
	pf.StringArrayVar(&opts.Danger, "danger", nil, "TLS override name=bool, repeatable (danger_accept_invalid_hostnames, danger_accept_invalid_certs)")
	pf.BoolVar(&opts.AltDNS, "alt-dns", false, "resolve host names with the pure Go resolver")
	pf.BoolVar(&opts.Cookies, "cookies", false, "keep cookies across redirects")
	pf.DurationVar(&opts.Timeout, "timeout", 0, "timeout for buffered requests (0 = none)")
	pf.StringVar(&opts.OTLPEndpoint, "otlp-endpoint", "", "export traces and metrics to this OTLP/HTTP host:port")
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// session is everything a command needs to dispatch requests.
type session struct {
	settings *Settings
	client   *httpclient.Client
	shutdown func(context.Context) error
}

// openSession loads settings, initializes logging and telemetry and builds
// the client.
func openSession(ctx context.Context, cmd *cobra.Command, opts *GlobalOptions) (*session, error) {
	settings, err := loadSettings(cmd, opts)
	if err != nil {
		return nil, err
	}

	logger.Init(&settings.Logging)
	log := logger.GetGlobalLogger()

	shutdown, err := setupTelemetry(ctx, opts, settings)
	if err != nil {
		return nil, err
	}

	client, err := httpclient.New(settings.Client, httpclient.WithLogger(log.WithComponent("httpclient")))
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	return &session{settings: settings, client: client, shutdown: shutdown}, nil
}

func (s *session) close() {
	_ = s.client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown failed", logger.Fields(logger.FieldError, err.Error()))
	}
}

// setupTelemetry installs OTLP tracer and meter providers when an endpoint
// is configured. The returned function flushes and stops them.
func setupTelemetry(ctx context.Context, opts *GlobalOptions, settings *Settings) (func(context.Context) error, error) {
	if opts.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	tcfg := observability.DefaultTracerConfig(settings.Name)
	tcfg.ServiceVersion = version.Get().Short()
	tcfg.Environment = settings.Environment
	tcfg.Endpoint = opts.OTLPEndpoint
	tp, err := observability.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, err
	}

	mcfg := observability.DefaultMeterConfig(settings.Name)
	mcfg.ServiceVersion = tcfg.ServiceVersion
	mcfg.Environment = settings.Environment
	mcfg.Endpoint = opts.OTLPEndpoint
	mp, err := observability.InitMeter(ctx, mcfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
