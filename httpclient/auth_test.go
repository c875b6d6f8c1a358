package httpclient

import (
	"encoding/base64"
	"testing"
)

func TestAuthConfig_Header(t *testing.T) {
	tests := []struct {
		name      string
		auth      *AuthConfig
		wantName  string
		wantValue string
		wantOK    bool
	}{
		{"bearer", BearerAuth("my-token"), "Authorization", "Bearer my-token", true},
		{"basic", BasicAuth("user", "pass"), "Authorization", "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass")), true},
		{"api key", APIKeyAuth("secret-key"), "X-API-Key", "secret-key", true},
		{"api key custom header", APIKeyAuthHeader("secret-key", "X-Custom-Key"), "X-Custom-Key", "secret-key", true},
		{"api key empty name", &AuthConfig{Type: AuthAPIKey, Key: "k"}, "X-API-Key", "k", true},
		{"none", &AuthConfig{Type: AuthNone}, "", "", false},
		{"nil", nil, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, value, ok := tt.auth.header()
			if ok != tt.wantOK || name != tt.wantName || value != tt.wantValue {
				t.Errorf("header() = (%q, %q, %v), want (%q, %q, %v)", name, value, ok, tt.wantName, tt.wantValue, tt.wantOK)
			}
		})
	}
}

func TestClient_SetAuth(t *testing.T) {
	c := newTestClient(t, Config{})

	if err := c.SetAuth(BearerAuth("tok")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.DefaultHeaders()["authorization"]; got != "Bearer tok" {
		t.Errorf("expected bearer header, got %q", got)
	}

	if err := c.SetAuth(nil); err != nil {
		t.Fatalf("unexpected error for nil auth: %v", err)
	}
	if got := c.DefaultHeaders()["authorization"]; got != "Bearer tok" {
		t.Errorf("nil auth should leave headers untouched, got %q", got)
	}

	if err := c.SetAuth(APIKeyAuthHeader("k", "Bad Header")); !IsValidation(err) {
		t.Errorf("expected validation error for bad header name, got %v", err)
	}
}
