package security

import (
	"bytes"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bachuetech/bt-http-utils/logger"
	"github.com/bachuetech/bt-http-utils/security/tlstest"
)

func TestTrustSettings_ResolveCertDir(t *testing.T) {
	t.Run("explicit wins", func(t *testing.T) {
		t.Setenv(CertDirEnv, "/from/env")
		s := TrustSettings{CertDir: "/explicit"}
		if got := s.ResolveCertDir(); got != "/explicit" {
			t.Errorf("expected /explicit, got %q", got)
		}
	})
	t.Run("environment", func(t *testing.T) {
		t.Setenv(CertDirEnv, "/from/env")
		if got := (TrustSettings{}).ResolveCertDir(); got != "/from/env" {
			t.Errorf("expected /from/env, got %q", got)
		}
	})
	t.Run("default", func(t *testing.T) {
		t.Setenv(CertDirEnv, "")
		if got := (TrustSettings{}).ResolveCertDir(); got != DefaultCertDir {
			t.Errorf("expected %q, got %q", DefaultCertDir, got)
		}
	})
}

func TestLoadTrust_MissingDirectory(t *testing.T) {
	var buf bytes.Buffer
	trust := LoadTrust(TrustSettings{CertDir: filepath.Join(t.TempDir(), "nope")}, logger.NewWithWriter(&buf, "info"))

	if n := len(trust.Certificates()); n != 0 {
		t.Errorf("expected no certificates, got %d", n)
	}
	if n := len(trust.Faults()); n != 0 {
		t.Errorf("missing directory is not a fault, got %d", n)
	}
	if cfg := trust.TLSConfig(); cfg != nil {
		t.Error("expected nil tls.Config when nothing is configured")
	}
	if !strings.Contains(buf.String(), `"level":"info"`) {
		t.Errorf("expected info log for missing directory, got %s", buf.String())
	}
}

func TestLoadTrust_LoadsPEMFiles(t *testing.T) {
	ca := tlstest.NewAuthority(t)
	trust := LoadTrust(TrustSettings{CertDir: ca.Dir}, logger.Nop())

	certs := trust.Certificates()
	if len(certs) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(certs))
	}
	if !certs[0].Equal(ca.CACert) {
		t.Error("expected the CA certificate to be loaded")
	}
	if trust.Dir() != ca.Dir {
		t.Errorf("expected dir %q, got %q", ca.Dir, trust.Dir())
	}

	cfg := trust.TLSConfig()
	if cfg == nil {
		t.Fatal("expected tls.Config with local roots")
	}
	if cfg.RootCAs == nil {
		t.Error("expected RootCAs to be set")
	}
	if cfg.InsecureSkipVerify {
		t.Error("expected verification to stay enabled")
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("expected MinVersion=TLS12, got %d", cfg.MinVersion)
	}
}

func TestLoadTrust_NonRecursiveAndExtensionFilter(t *testing.T) {
	ca := tlstest.NewAuthority(t)
	dir := t.TempDir()

	ca.CopyCA(t, dir, "root.pem")
	ca.CopyCA(t, dir, "root.crt")
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	ca.CopyCA(t, sub, "deep.pem")
	if err := os.Mkdir(filepath.Join(dir, "folder.pem"), 0o755); err != nil {
		t.Fatal(err)
	}

	trust := LoadTrust(TrustSettings{CertDir: dir}, logger.Nop())
	if n := len(trust.Certificates()); n != 1 {
		t.Errorf("expected only root.pem to load, got %d certificates", n)
	}
	if n := len(trust.Faults()); n != 0 {
		t.Errorf("expected no faults, got %v", trust.Faults())
	}
}

func TestLoadTrust_BadFileIsSkipped(t *testing.T) {
	ca := tlstest.NewAuthority(t)
	bad := tlstest.WriteInvalidPEM(t, ca.Dir, "broken.pem")
	if err := os.WriteFile(filepath.Join(ca.Dir, "empty.pem"), []byte("just text\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	trust := LoadTrust(TrustSettings{CertDir: ca.Dir}, logger.NewWithWriter(&buf, "info"))

	if n := len(trust.Certificates()); n != 1 {
		t.Errorf("expected the valid CA to survive, got %d certificates", n)
	}
	faults := trust.Faults()
	if len(faults) != 2 {
		t.Fatalf("expected 2 faults, got %d", len(faults))
	}

	var fault *LoadFault
	if !errors.As(error(faults[0]), &fault) || fault.Path != bad {
		t.Errorf("expected first fault for %s, got %v", bad, faults[0])
	}
	if !errors.Is(faults[1], ErrNoCertificate) {
		t.Errorf("expected ErrNoCertificate for empty.pem, got %v", faults[1])
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Errorf("expected error-level log, got %s", buf.String())
	}
}

func TestLoadTrust_Overrides(t *testing.T) {
	tests := []struct {
		name          string
		overrides     []DangerOverride
		wantHostnames bool
		wantCerts     bool
		wantIgnored   int
	}{
		{"none", nil, false, false, 0},
		{"hostnames", []DangerOverride{{DangerAcceptInvalidHostnames, true}}, true, false, 0},
		{"certs", []DangerOverride{{DangerAcceptInvalidCerts, true}}, false, true, 0},
		{"later wins", []DangerOverride{{DangerAcceptInvalidCerts, true}, {DangerAcceptInvalidCerts, false}}, false, false, 0},
		{"unknown ignored", []DangerOverride{{"danger_accept_everything", true}, {DangerAcceptInvalidHostnames, true}}, true, false, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			trust := LoadTrust(TrustSettings{CertDir: t.TempDir(), DangerOverrides: tc.overrides}, logger.Nop())
			if trust.AcceptInvalidHostnames() != tc.wantHostnames {
				t.Errorf("AcceptInvalidHostnames = %v, want %v", trust.AcceptInvalidHostnames(), tc.wantHostnames)
			}
			if trust.AcceptInvalidCerts() != tc.wantCerts {
				t.Errorf("AcceptInvalidCerts = %v, want %v", trust.AcceptInvalidCerts(), tc.wantCerts)
			}
			if n := len(trust.IgnoredOverrides()); n != tc.wantIgnored {
				t.Errorf("expected %d ignored overrides, got %d", tc.wantIgnored, n)
			}
		})
	}
}

func TestLoadTrust_UnknownOverrideWarns(t *testing.T) {
	var buf bytes.Buffer
	LoadTrust(TrustSettings{
		CertDir:         t.TempDir(),
		DangerOverrides: []DangerOverride{{Name: "bogus", Enabled: true}},
	}, logger.NewWithWriter(&buf, "warn"))

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "bogus") {
		t.Errorf("expected warning naming the flag, got %s", out)
	}
}

func TestTrust_TLSConfigOverridesWithoutCerts(t *testing.T) {
	trust := LoadTrust(TrustSettings{
		CertDir:         t.TempDir(),
		DangerOverrides: []DangerOverride{{Name: DangerAcceptInvalidCerts, Enabled: true}},
	}, logger.Nop())

	cfg := trust.TLSConfig()
	if cfg == nil {
		t.Fatal("expected tls.Config for enabled override")
	}
	if !cfg.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify")
	}
	if cfg.RootCAs != nil {
		t.Error("expected system roots when no local certificates exist")
	}
}

func TestTrust_NilTLSConfig(t *testing.T) {
	var trust *Trust
	if trust.TLSConfig() != nil {
		t.Error("expected nil for nil trust")
	}
}

func tlsServer(t *testing.T, cert tls.Certificate) *httptest.Server {
	t.Helper()
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	srv.TLS = &tls.Config{Certificates: []tls.Certificate{cert}}
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

func get(cfg *tls.Config, url string) error {
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: cfg}}
	defer client.CloseIdleConnections()
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func TestTrust_Handshake(t *testing.T) {
	ca := tlstest.NewAuthority(t)
	other := tlstest.NewAuthority(t)

	good := tlsServer(t, ca.Issue(t, "localhost", "127.0.0.1"))
	wrongHost := tlsServer(t, ca.Issue(t, "elsewhere.example"))
	foreign := tlsServer(t, other.Issue(t, "elsewhere.example"))

	trustCA := func(overrides ...DangerOverride) *tls.Config {
		return LoadTrust(TrustSettings{CertDir: ca.Dir, DangerOverrides: overrides}, logger.Nop()).TLSConfig()
	}

	tests := []struct {
		name    string
		cfg     *tls.Config
		url     string
		wantErr bool
	}{
		{"local root accepted", trustCA(), good.URL, false},
		{"host mismatch rejected", trustCA(), wrongHost.URL, true},
		{"host mismatch with hostname override", trustCA(DangerOverride{DangerAcceptInvalidHostnames, true}), wrongHost.URL, false},
		{"foreign chain with hostname override", trustCA(DangerOverride{DangerAcceptInvalidHostnames, true}), foreign.URL, true},
		{"foreign chain with cert override", trustCA(DangerOverride{DangerAcceptInvalidCerts, true}), foreign.URL, false},
		{"no local roots", LoadTrust(TrustSettings{CertDir: t.TempDir()}, logger.Nop()).TLSConfig(), good.URL, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := get(tc.cfg, tc.url)
			if (err != nil) != tc.wantErr {
				t.Errorf("get error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
