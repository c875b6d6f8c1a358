package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bachuetech/bt-http-utils/config"
	"github.com/bachuetech/bt-http-utils/httpclient"
	"github.com/bachuetech/bt-http-utils/security"
)

// Settings is the bthttp configuration file layout.
//
//	name: bthttp
//	logging:
//	  level: debug
//	client:
//	  timeout: 30s
//	  headers:
//	    Accept: application/json
//	  trust:
//	    cert_dir: /etc/bt/certs
type Settings struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Client httpclient.Config `yaml:"client" mapstructure:"client"`
}

// loadSettings reads the config file and BT_* environment, then applies
// flags the user set explicitly.
func loadSettings(cmd *cobra.Command, opts *GlobalOptions) (*Settings, error) {
	var s Settings
	loadOpts := []config.LoaderOption{}
	if opts.ConfigFile != "" {
		loadOpts = append(loadOpts, config.WithConfigFile(opts.ConfigFile))
	}
	if opts.EnvFile != "" {
		loadOpts = append(loadOpts, config.WithEnvFile(opts.EnvFile))
	}
	if err := config.LoadConfig(cliName, &s, loadOpts...); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		s.Logging.Level = opts.LogLevel
	}
	if flags.Changed("log-format") {
		s.Logging.Format = opts.LogFormat
	}
	if flags.Changed("cert-dir") {
		s.Client.Trust.CertDir = opts.CertDir
	}
	if flags.Changed("danger") {
		overrides, err := parseDanger(opts.Danger)
		if err != nil {
			return nil, err
		}
		s.Client.Trust.DangerOverrides = append(s.Client.Trust.DangerOverrides, overrides...)
	}
	if flags.Changed("alt-dns") {
		s.Client.UseAltDNS = opts.AltDNS
	}
	if flags.Changed("cookies") {
		s.Client.UseCookies = opts.Cookies
	}
	if flags.Changed("timeout") {
		s.Client.Timeout = opts.Timeout
	}

	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// parseKV turns repeated "key=value" flag values into a map. Later values
// win.
func parseKV(flag string, values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(values))
	for _, v := range values {
		k, val, ok := strings.Cut(v, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--%s expects key=value, got %q", flag, v)
		}
		m[k] = val
	}
	return m, nil
}

// parseDanger parses "name=bool" override flags. Names are not checked here;
// unknown ones are reported by the trust loader.
func parseDanger(values []string) ([]security.DangerOverride, error) {
	overrides := make([]security.DangerOverride, 0, len(values))
	for _, v := range values {
		name, raw, ok := strings.Cut(v, "=")
		if !ok {
			raw = "true"
		}
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("--danger %q: %w", v, err)
		}
		overrides = append(overrides, security.DangerOverride{Name: name, Enabled: enabled})
	}
	return overrides, nil
}
