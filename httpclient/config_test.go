package httpclient

import (
	"strings"
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.UserAgent != DefaultUserAgent {
		t.Errorf("expected default user agent, got %q", cfg.UserAgent)
	}
	if cfg.Timeout != 0 {
		t.Errorf("expected no default timeout, got %v", cfg.Timeout)
	}

	custom := Config{UserAgent: "custom/1.0"}
	custom.ApplyDefaults()
	if custom.UserAgent != "custom/1.0" {
		t.Errorf("ApplyDefaults overwrote user agent: %q", custom.UserAgent)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"zero", Config{}, ""},
		{"timeout", Config{Timeout: 5 * time.Second}, ""},
		{"headers", Config{Headers: map[string]string{"X-Api-Version": "2"}}, ""},
		{"negative timeout", Config{Timeout: -time.Second}, "timeout"},
		{"bad header", Config{Headers: map[string]string{"Bad Header": "v"}}, "headers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
			if !IsValidation(err) {
				t.Errorf("expected validation error code, got %v", err)
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{Timeout: -1}); !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
