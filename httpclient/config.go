package httpclient

import (
	"time"

	"github.com/bachuetech/bt-http-utils/security"
	"github.com/bachuetech/bt-http-utils/validation"
)

// DefaultUserAgent is sent unless Config.UserAgent or a default header
// overrides it.
const DefaultUserAgent = "Mozilla/5.0 (compatible; BachueTech/1.0)"

// Config configures the HTTP client.
type Config struct {
	// UserAgent is the default User-Agent header. Defaults to DefaultUserAgent.
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`

	// Headers are default headers applied to all requests.
	Headers map[string]string `yaml:"headers" mapstructure:"headers" validate:"dive,keys,header_name,endkeys"`

	// UseAltDNS resolves host names with the pure Go resolver instead of
	// the system one.
	UseAltDNS bool `yaml:"use_alt_dns" mapstructure:"use_alt_dns"`

	// UseCookies enables a cookie jar shared by all calls of the client.
	UseCookies bool `yaml:"use_cookies" mapstructure:"use_cookies"`

	// Timeout bounds full (non-streaming) requests. Zero means no limit;
	// callers can still bound a call through its context.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"min=0"`

	// Trust selects local trust anchors and TLS verification overrides.
	Trust security.TrustSettings `yaml:"trust" mapstructure:"trust"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return NewValidationError(err.Error(), err)
	}
	return nil
}
