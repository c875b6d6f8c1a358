package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ContentType selects the Content-Type header and the body encoding.
type ContentType int

const (
	// ContentJSON sends "application/json" and encodes body parameters as
	// a JSON object.
	ContentJSON ContentType = iota
	// ContentText sends "application/text" and encodes body parameters as
	// k=v pairs joined by "&", unescaped.
	ContentText
)

// String returns "JSON" or "TEXT".
func (ct ContentType) String() string {
	if ct == ContentText {
		return "TEXT"
	}
	return "JSON"
}

// MIMEType returns the Content-Type header value.
func (ct ContentType) MIMEType() string {
	if ct == ContentText {
		return "application/text"
	}
	return "application/json"
}

// ParseContentType accepts "json" or "text" in any case.
func ParseContentType(s string) (ContentType, error) {
	switch strings.ToUpper(s) {
	case "JSON":
		return ContentJSON, nil
	case "TEXT":
		return ContentText, nil
	default:
		return ContentJSON, NewValidationError(fmt.Sprintf("unknown content type %q", s), nil)
	}
}

// ParseMethod returns the canonical upper-case method for GET, POST, PUT,
// DELETE and PATCH in any case.
func ParseMethod(method string) (string, error) {
	switch m := strings.ToUpper(method); m {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return m, nil
	default:
		return "", NewUnsupportedMethodError(method)
	}
}

// UnknownRemoteAddress is reported when the peer address was not observed.
const UnknownRemoteAddress = "0.0.0.0"

// Response is the result of an HTTP request.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Headers are keyed by lower-cased name; the first value wins.
	Headers map[string]string
	// Body is the text payload, decoded as lossy UTF-8, or a diagnostic
	// message for error statuses.
	Body string
	// RemoteAddress is the IP of the peer that answered.
	RemoteAddress string
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// IsError returns true if the status code is 4xx or 5xx.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400 && r.StatusCode <= 599
}

// Header returns the value of the named header, case-insensitively.
func (r *Response) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// requestSpec is the fully resolved form of one call.
type requestSpec struct {
	method  string
	url     string
	headers *HeaderStore
	body    []byte
	hasBody bool
}

// encodeBody serializes body parameters for a non-GET call.
func encodeBody(params map[string]string, ct ContentType) ([]byte, error) {
	if ct == ContentText {
		pairs := make([]string, 0, len(params))
		for _, k := range sortedKeys(params) {
			pairs = append(pairs, k+"="+params[k])
		}
		return []byte(strings.Join(pairs, "&")), nil
	}
	return json.Marshal(params)
}

// withQuery appends params to the query of rawURL. Parameters already in
// the URL are kept.
func withQuery(rawURL string, params map[string]string) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for _, k := range sortedKeys(params) {
		q.Add(k, params[k])
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// flattenHeaders converts multi-value headers to single-value, lower-cased
// keys.
func flattenHeaders(h http.Header) map[string]string {
	result := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			result[strings.ToLower(k)] = v[0]
		}
	}
	return result
}
