package cli

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/bachuetech/bt-http-utils/httpclient"
	"github.com/bachuetech/bt-http-utils/security"
	"github.com/bachuetech/bt-http-utils/security/tlstest"
	"github.com/bachuetech/bt-http-utils/version"
)

// run executes bthttp with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	base := []string{"--log-level", "disabled"}
	if !containsFlag(args, "--cert-dir") {
		base = append(base, "--cert-dir", t.TempDir())
	}
	// Persistent flags are accepted after the subcommand name.
	cmd.SetArgs(append(args, base...))
	err := cmd.Execute()
	return out.String(), err
}

func containsFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Echo", "1")
		fmt.Fprintf(w, "%s %s ct=%s x=%s body=%s", r.Method, r.URL.RequestURI(),
			r.Header.Get("Content-Type"), r.Header.Get("X-Test"), body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	if cmd.Use != "bthttp" {
		t.Errorf("expected Use to be 'bthttp', got %q", cmd.Use)
	}
	want := map[string]bool{"request": false, "stream": false, "version": false}
	for _, sub := range cmd.Commands() {
		want[sub.Name()] = true
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRequest_GetWithParams(t *testing.T) {
	srv := newEchoServer(t)

	out, err := run(t, "request", "get", srv.URL+"/users/{id}", "-p", "id=7", "-p", "expand=roles", "-H", "X-Test=yes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "GET /users/7?expand=roles ct=application/json x=yes body=\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestRequest_PostTextBody(t *testing.T) {
	srv := newEchoServer(t)

	out, err := run(t, "request", "POST", srv.URL+"/items", "-b", "b=2", "-b", "a=1", "--type", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "POST /items ct=application/text") || !strings.Contains(out, "body=a=1&b=2") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRequest_Include(t *testing.T) {
	srv := newEchoServer(t)

	out, err := run(t, "request", "GET", srv.URL, "-i")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "HTTP 200 (from 127.0.0.1)\n") {
		t.Errorf("missing status line in %q", out)
	}
	if !strings.Contains(out, "x-echo: 1\n") {
		t.Errorf("missing header in %q", out)
	}
}

func TestRequest_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	out, err := run(t, "request", "delete", srv.URL+"/x")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusForbidden {
		t.Fatalf("expected StatusError 403, got %v", err)
	}
	want := "ERROR: Failed to get response from DELETE:" + srv.URL + "/x -Error: Forbidden\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestRequest_Failures(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(error) bool
	}{
		{"unsupported method", []string{"request", "OPTIONS", "http://127.0.0.1/"}, httpclient.IsUnsupportedMethod},
		{"transport", []string{"request", "GET", "http://127.0.0.1:1/"}, httpclient.IsTransport},
		{"bad param", []string{"request", "GET", "http://h/", "-p", "novalue"}, func(err error) bool {
			return err != nil && strings.Contains(err.Error(), "--param expects key=value")
		}},
		{"bad type", []string{"request", "POST", "http://h/", "--type", "xml"}, httpclient.IsValidation},
		{"bad danger", []string{"request", "GET", "http://h/", "--danger", "danger_accept_invalid_certs=maybe"}, func(err error) bool {
			return err != nil && strings.Contains(err.Error(), "--danger")
		}},
		{"missing args", []string{"request", "GET"}, func(err error) bool { return err != nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestRequest_TrustedCertDir(t *testing.T) {
	ca := tlstest.NewAuthority(t)
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "secure")
	}))
	srv.TLS = &tls.Config{Certificates: []tls.Certificate{ca.Issue(t, "127.0.0.1")}}
	srv.StartTLS()
	t.Cleanup(srv.Close)

	out, err := run(t, "request", "GET", srv.URL, "--cert-dir", ca.Dir)
	if err != nil {
		t.Fatalf("expected local anchor to be trusted: %v", err)
	}
	if out != "secure\n" {
		t.Errorf("unexpected output %q", out)
	}

	if _, err := run(t, "request", "GET", srv.URL); !httpclient.IsTransport(err) {
		t.Errorf("expected transport error without the anchor, got %v", err)
	}
}

func TestStream_PrintsChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		flusher := w.(http.Flusher)
		for _, part := range []string{"echo:", string(body), ":done"} {
			_, _ = io.WriteString(w, part)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)

	out, err := run(t, "stream", srv.URL, "--data", `{"prompt":"hi"}`, "--timeout", "1ns")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `echo:{"prompt":"hi"}:done`+"\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestStream_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	out, err := run(t, "stream", srv.URL+"/gen")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 500 {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
	want := "ERROR: Failed to read stream response from " + srv.URL + "/gen. Status: Internal Server Error.\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "bthttp ") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = run(t, "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var info version.Info
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if info.Version != version.Version {
		t.Errorf("expected version %q, got %q", version.Version, info.Version)
	}
}

func TestParseKV(t *testing.T) {
	m, err := parseKV("header", []string{"A=1", "B=x=y", "A=2", "Empty="})
	if err != nil {
		t.Fatal(err)
	}
	if m["A"] != "2" || m["B"] != "x=y" || m["Empty"] != "" || len(m) != 3 {
		t.Errorf("unexpected map %v", m)
	}

	if m, err := parseKV("header", nil); err != nil || m != nil {
		t.Errorf("expected nil map for no values, got %v, %v", m, err)
	}
	for _, bad := range []string{"noequals", "=value"} {
		if _, err := parseKV("header", []string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestParseDanger(t *testing.T) {
	got, err := parseDanger([]string{
		"danger_accept_invalid_hostnames",
		"danger_accept_invalid_certs=false",
		"something_else=1",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []security.DangerOverride{
		{Name: security.DangerAcceptInvalidHostnames, Enabled: true},
		{Name: security.DangerAcceptInvalidCerts, Enabled: false},
		{Name: "something_else", Enabled: true},
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yml")
	yml := `
name: bthttp-test
environment: test
logging:
  level: warn
client:
  timeout: 30s
  use_cookies: true
  headers:
    X-From-Config: "1"
  trust:
    cert_dir: /from/config
    danger_overrides:
      - name: danger_accept_invalid_hostnames
        enabled: true
`
	if err := os.WriteFile(cfgPath, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BT_CLIENT_USER_AGENT", "env-agent/1.0")

	opts := &GlobalOptions{}
	cmd := &cobra.Command{Use: "test"}
	addGlobalFlags(cmd, opts)
	if err := cmd.ParseFlags([]string{
		"--config", cfgPath,
		"--timeout", "2s",
		"--log-level", "debug",
		"--danger", "danger_accept_invalid_certs=true",
	}); err != nil {
		t.Fatal(err)
	}

	s, err := loadSettings(cmd, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name != "bthttp-test" || s.Environment != "test" {
		t.Errorf("unexpected service settings %+v", s.ServiceConfig)
	}
	if s.Logging.Level != "debug" {
		t.Errorf("flag should override log level, got %q", s.Logging.Level)
	}
	if s.Client.Timeout != 2*time.Second {
		t.Errorf("flag should override timeout, got %v", s.Client.Timeout)
	}
	if !s.Client.UseCookies {
		t.Error("use_cookies from config was lost")
	}
	if s.Client.UseAltDNS {
		t.Error("unset flag must not override config")
	}
	if s.Client.UserAgent != "env-agent/1.0" {
		t.Errorf("expected user agent from environment, got %q", s.Client.UserAgent)
	}
	if s.Client.Headers["x-from-config"] != "1" {
		t.Errorf("unexpected headers %v", s.Client.Headers)
	}
	if s.Client.Trust.CertDir != "/from/config" {
		t.Errorf("unexpected cert dir %q", s.Client.Trust.CertDir)
	}
	if len(s.Client.Trust.DangerOverrides) != 2 || s.Client.Trust.DangerOverrides[1].Name != security.DangerAcceptInvalidCerts {
		t.Errorf("flag overrides should follow config ones, got %v", s.Client.Trust.DangerOverrides)
	}
}

func TestLoadSettings_InvalidEnvironment(t *testing.T) {
	t.Setenv("BT_ENVIRONMENT", "moon")

	opts := &GlobalOptions{}
	cmd := &cobra.Command{Use: "test"}
	addGlobalFlags(cmd, opts)
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatal(err)
	}
	if _, err := loadSettings(cmd, opts); err == nil || !strings.Contains(err.Error(), "environment") {
		t.Errorf("expected environment validation error, got %v", err)
	}
}
