package httpclient

import "encoding/base64"

// AuthType identifies the authentication method.
type AuthType int

const (
	// AuthNone disables authentication.
	AuthNone AuthType = iota
	// AuthBearer uses Bearer token authentication.
	AuthBearer
	// AuthBasic uses HTTP Basic authentication.
	AuthBasic
	// AuthAPIKey sends an API key in a header.
	AuthAPIKey
)

const defaultAPIKeyHeader = "X-API-Key"

// AuthConfig describes credentials that become a default header.
type AuthConfig struct {
	// Type is the authentication method.
	Type AuthType
	// Token is the bearer token (AuthBearer).
	Token string
	// Username is the basic auth username (AuthBasic).
	Username string
	// Password is the basic auth password (AuthBasic).
	Password string
	// Key is the API key value (AuthAPIKey).
	Key string
	// Name is the header name (AuthAPIKey). Defaults to "X-API-Key".
	Name string
}

// BearerAuth creates a bearer token auth config.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, Token: token}
}

// BasicAuth creates a basic auth config.
func BasicAuth(username, password string) *AuthConfig {
	return &AuthConfig{Type: AuthBasic, Username: username, Password: password}
}

// APIKeyAuth creates an API key auth config sent via X-API-Key.
func APIKeyAuth(key string) *AuthConfig {
	return &AuthConfig{Type: AuthAPIKey, Key: key, Name: defaultAPIKeyHeader}
}

// APIKeyAuthHeader creates an API key auth config with a custom header name.
func APIKeyAuthHeader(key, headerName string) *AuthConfig {
	return &AuthConfig{Type: AuthAPIKey, Key: key, Name: headerName}
}

// header returns the header carrying the credentials. ok is false for
// AuthNone or a nil config.
func (a *AuthConfig) header() (name, value string, ok bool) {
	if a == nil {
		return "", "", false
	}
	switch a.Type {
	case AuthBearer:
		return "Authorization", "Bearer " + a.Token, true
	case AuthBasic:
		creds := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
		return "Authorization", "Basic " + creds, true
	case AuthAPIKey:
		name := a.Name
		if name == "" {
			name = defaultAPIKeyHeader
		}
		return name, a.Key, true
	default:
		return "", "", false
	}
}

// SetAuth stores the credentials of a as a default header. A nil config or
// AuthNone leaves the headers untouched.
func (c *Client) SetAuth(a *AuthConfig) error {
	name, value, ok := a.header()
	if !ok {
		return nil
	}
	return c.SetHeader(name, value)
}
