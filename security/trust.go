package security

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bachuetech/bt-http-utils/logger"
)

// Recognized danger override names.
const (
	DangerAcceptInvalidHostnames = "danger_accept_invalid_hostnames"
	DangerAcceptInvalidCerts     = "danger_accept_invalid_certs"
)

const (
	// CertDirEnv names the environment variable consulted when
	// TrustSettings.CertDir is empty.
	CertDirEnv = "BTLOCALPEMCERTIFICATES"
	// DefaultCertDir is used when neither the settings nor the environment
	// name a directory.
	DefaultCertDir = "certs"

	pemExt       = ".pem"
	pemBlockCert = "CERTIFICATE"
)

var (
	// ErrUnrecognizedOverride is logged for override names that are not one
	// of the Danger* constants.
	ErrUnrecognizedOverride = errors.New("security/trust: unrecognized danger override")
	// ErrNoCertificate marks a PEM file without any CERTIFICATE block.
	ErrNoCertificate = errors.New("security/trust: no certificate found")
)

// DangerOverride enables or disables one TLS verification bypass.
type DangerOverride struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
}

// TrustSettings selects where local trust anchors come from and which
// verification overrides apply.
type TrustSettings struct {
	// CertDir is scanned for *.pem files.
	CertDir string `yaml:"cert_dir" mapstructure:"cert_dir"`

	// DangerOverrides are applied in order; later entries win.
	DangerOverrides []DangerOverride `yaml:"danger_overrides" mapstructure:"danger_overrides"`
}

// ResolveCertDir returns the directory LoadTrust will scan.
func (s TrustSettings) ResolveCertDir() string {
	if s.CertDir != "" {
		return s.CertDir
	}
	if env := os.Getenv(CertDirEnv); env != "" {
		return env
	}
	return DefaultCertDir
}

// LoadFault describes a PEM file that was skipped.
type LoadFault struct {
	Path string
	Err  error
}

func (f *LoadFault) Error() string {
	return fmt.Sprintf("security/trust: load %s: %v", f.Path, f.Err)
}

func (f *LoadFault) Unwrap() error { return f.Err }

// Trust is the result of LoadTrust. It is not modified afterwards.
type Trust struct {
	dir                    string
	certs                  []*x509.Certificate
	faults                 []*LoadFault
	ignored                []string
	acceptInvalidHostnames bool
	acceptInvalidCerts     bool
}

// LoadTrust reads local certificates and resolves the override list. It
// never fails: unreadable directories, bad files and unknown override names
// are logged and skipped. A nil log uses the "security" registry logger.
func LoadTrust(settings TrustSettings, log *logger.Logger) *Trust {
	if log == nil {
		log = logger.Get("security")
	}
	t := &Trust{dir: settings.ResolveCertDir()}
	t.loadDir(log)
	t.applyOverrides(settings.DangerOverrides, log)
	return t
}

func (t *Trust) loadDir(log *logger.Logger) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		log.Info("no local certificates loaded", logger.Fields(logger.FieldPath, t.dir, logger.FieldError, err.Error()))
		return
	}

	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != pemExt {
			continue
		}
		path := filepath.Join(t.dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		certs, err := readPEMCertificates(path)
		if err != nil {
			fault := &LoadFault{Path: path, Err: err}
			t.faults = append(t.faults, fault)
			log.Error("skipping certificate file", logger.ErrorFields("load-certificate", fault))
			continue
		}
		t.certs = append(t.certs, certs...)
		log.Debug("loaded certificate file", logger.Fields(logger.FieldPath, path, "count", len(certs)))
	}
}

func readPEMCertificates(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != pemBlockCert {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, ErrNoCertificate
	}
	return certs, nil
}

func (t *Trust) applyOverrides(overrides []DangerOverride, log *logger.Logger) {
	for _, o := range overrides {
		switch o.Name {
		case DangerAcceptInvalidHostnames:
			t.acceptInvalidHostnames = o.Enabled
		case DangerAcceptInvalidCerts:
			t.acceptInvalidCerts = o.Enabled
		default:
			t.ignored = append(t.ignored, o.Name)
			log.Warn("ignoring danger override", logger.Fields(
				"flag", o.Name,
				logger.FieldError, fmt.Errorf("%w: %q", ErrUnrecognizedOverride, o.Name).Error(),
			))
			continue
		}
		if o.Enabled {
			log.Warn("TLS verification override enabled", logger.Fields("flag", o.Name))
		}
	}
}

// Dir returns the directory that was scanned.
func (t *Trust) Dir() string { return t.dir }

// Certificates returns the loaded local trust anchors.
func (t *Trust) Certificates() []*x509.Certificate {
	return append([]*x509.Certificate(nil), t.certs...)
}

// Faults returns one entry per skipped PEM file.
func (t *Trust) Faults() []*LoadFault {
	return append([]*LoadFault(nil), t.faults...)
}

// IgnoredOverrides returns the override names that were not recognized.
func (t *Trust) IgnoredOverrides() []string {
	return append([]string(nil), t.ignored...)
}

// AcceptInvalidHostnames reports whether host name verification is bypassed.
func (t *Trust) AcceptInvalidHostnames() bool { return t.acceptInvalidHostnames }

// AcceptInvalidCerts reports whether certificate verification is bypassed.
func (t *Trust) AcceptInvalidCerts() bool { return t.acceptInvalidCerts }

// TLSConfig builds the client TLS configuration.
// Returns nil when there is nothing to change from the platform defaults.
func (t *Trust) TLSConfig() *tls.Config {
	if t == nil || (len(t.certs) == 0 && !t.acceptInvalidCerts && !t.acceptInvalidHostnames) {
		return nil
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	roots := t.rootPool()
	cfg.RootCAs = roots

	switch {
	case t.acceptInvalidCerts:
		cfg.InsecureSkipVerify = true //nolint:gosec // explicit danger override
	case t.acceptInvalidHostnames:
		// The chain is still verified, only the name check is dropped.
		cfg.InsecureSkipVerify = true //nolint:gosec // explicit danger override
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			return verifyChain(cs.PeerCertificates, roots)
		}
	}
	return cfg
}

// rootPool returns nil when there are no local certificates so that the
// system roots apply unchanged.
func (t *Trust) rootPool() *x509.CertPool {
	if len(t.certs) == 0 {
		return nil
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	for _, c := range t.certs {
		pool.AddCert(c)
	}
	return pool
}

func verifyChain(peers []*x509.Certificate, roots *x509.CertPool) error {
	if len(peers) == 0 {
		return errors.New("security/trust: server presented no certificate")
	}
	intermediates := x509.NewCertPool()
	for _, c := range peers[1:] {
		intermediates.AddCert(c)
	}
	_, err := peers[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
	})
	return err
}
