package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptrace"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"github.com/bachuetech/bt-http-utils/logger"
	"github.com/bachuetech/bt-http-utils/observability"
	"github.com/bachuetech/bt-http-utils/security"
)

const (
	componentName = "httpclient"
	meterName     = "github.com/bachuetech/bt-http-utils/httpclient"
)

// Client is a configurable HTTP client. It is safe for concurrent use; each
// call works on its own copy of the default headers.
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	config       Config
	trust        *security.Trust
	log          *logger.Logger
	metrics      *observability.ClientMetrics

	mu      sync.RWMutex
	headers *HeaderStore
}

type options struct {
	log          *logger.Logger
	metrics      *observability.ClientMetrics
	roundTripper http.RoundTripper
}

// Option customizes a Client.
type Option func(*options)

// WithLogger sets the logger. Defaults to the "httpclient" registry logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics sets the metric instruments. Defaults to instruments created
// on the global meter provider.
func WithMetrics(m *observability.ClientMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRoundTripper replaces the transport built from Config. Trust settings
// are still loaded but no longer applied.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *options) { o.roundTripper = rt }
}

// New creates a new HTTP client with the given configuration. Local trust
// anchors and danger overrides are loaded once, here.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get(componentName)
	}
	if o.metrics == nil {
		m, err := observability.NewClientMetrics(observability.Meter(meterName))
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}

	trust := security.LoadTrust(cfg.Trust, o.log)

	rt := o.roundTripper
	if rt == nil {
		rt = newTransport(cfg, trust)
	}

	var jar http.CookieJar
	if cfg.UseCookies {
		j, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("httpclient: cookie jar: %w", err)
		}
		jar = j
	}

	headers := NewHeaderStore()
	headers.Set("User-Agent", cfg.UserAgent)
	for _, k := range sortedKeys(cfg.Headers) {
		headers.Set(k, cfg.Headers[k])
	}

	return &Client{
		httpClient: &http.Client{
			Transport: rt,
			Timeout:   cfg.Timeout,
			Jar:       jar,
		},
		// Streams are bounded by their context only.
		streamClient: &http.Client{
			Transport: rt,
			Jar:       jar,
		},
		config:  cfg,
		trust:   trust,
		log:     o.log,
		metrics: o.metrics,
		headers: headers,
	}, nil
}

func newTransport(cfg Config, trust *security.Trust) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsCfg := trust.TLSConfig(); tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}
	if cfg.UseAltDNS {
		dialer := &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
			Resolver:  &net.Resolver{PreferGo: true},
		}
		transport.DialContext = dialer.DialContext
	}
	return transport
}

// Request resolves urlTemplate against params and sends the request.
//
// For GET, params that match no placeholder become query parameters and
// bodyParams is ignored. For other methods bodyParams is encoded according
// to ct and unmatched params are dropped. A returned error means nothing
// usable came back (unsupported method, invalid header, send failure); HTTP
// error statuses are reported through Response.IsError.
func (c *Client) Request(ctx context.Context, method, urlTemplate string, extra, bodyParams, params map[string]string, ct ContentType) (*Response, error) {
	spec, err := c.prepare(method, urlTemplate, extra, bodyParams, params, ct)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, spec)
}

// RequestStream is Request returning a Stream instead of a buffered body.
func (c *Client) RequestStream(ctx context.Context, method, urlTemplate string, extra, bodyParams, params map[string]string, ct ContentType) (*Stream, error) {
	spec, err := c.prepare(method, urlTemplate, extra, bodyParams, params, ct)
	if err != nil {
		return nil, err
	}
	return c.doStream(ctx, spec)
}

// Get sends a GET to url as given, without parameter resolution.
func (c *Client) Get(ctx context.Context, url string, extra map[string]string) (*Response, error) {
	headers, err := c.callHeaders(extra)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, &requestSpec{method: http.MethodGet, url: url, headers: headers})
}

// Post sends a pre-serialized body to url with the Content-Type of ct.
func (c *Client) Post(ctx context.Context, url string, extra map[string]string, body string, ct ContentType) (*Response, error) {
	spec, err := c.postSpec(url, extra, body, ct)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, spec)
}

// PostStream is Post returning a Stream. The caller must drain or Close it.
func (c *Client) PostStream(ctx context.Context, url string, extra map[string]string, body string, ct ContentType) (*Stream, error) {
	spec, err := c.postSpec(url, extra, body, ct)
	if err != nil {
		return nil, err
	}
	return c.doStream(ctx, spec)
}

// SetHeader adds or replaces a default header for all later calls.
func (c *Client) SetHeader(name, value string) error {
	if err := validateHeader(name, value); err != nil {
		return err
	}
	c.mu.Lock()
	c.headers.Set(name, value)
	c.mu.Unlock()
	return nil
}

// DefaultHeaders returns a copy of the default headers keyed by lower-cased
// name.
func (c *Client) DefaultHeaders() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.headers.Map()
}

// Trust returns the trust configuration loaded at construction.
func (c *Client) Trust() *security.Trust {
	return c.trust
}

// Unwrap returns the underlying *http.Client for advanced use cases.
func (c *Client) Unwrap() *http.Client {
	return c.httpClient
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) prepare(method, urlTemplate string, extra, bodyParams, params map[string]string, ct ContentType) (*requestSpec, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}
	headers, err := c.callHeaders(extra)
	if err != nil {
		return nil, err
	}
	headers.Set("Content-Type", ct.MIMEType())

	resolved, leftover := ResolveURL(urlTemplate, params)
	spec := &requestSpec{method: m, url: resolved, headers: headers}

	if m == http.MethodGet {
		if len(bodyParams) > 0 {
			c.log.Debug("body parameters ignored for GET", logger.Fields(logger.FieldURL, resolved))
		}
		u, err := withQuery(resolved, leftover)
		if err != nil {
			return nil, NewTransportError(m, resolved, err)
		}
		spec.url = u
		return spec, nil
	}

	if len(leftover) > 0 {
		c.log.Debug("unused parameters", logger.Fields(logger.FieldURL, resolved, "params", sortedKeys(leftover)))
	}
	if len(bodyParams) > 0 {
		body, err := encodeBody(bodyParams, ct)
		if err != nil {
			return nil, NewValidationError("encode body", err)
		}
		spec.body, spec.hasBody = body, true
	}
	return spec, nil
}

func (c *Client) postSpec(url string, extra map[string]string, body string, ct ContentType) (*requestSpec, error) {
	headers, err := c.callHeaders(extra)
	if err != nil {
		return nil, err
	}
	headers.Set("Content-Type", ct.MIMEType())
	return &requestSpec{
		method:  http.MethodPost,
		url:     url,
		headers: headers,
		body:    []byte(body),
		hasBody: true,
	}, nil
}

// callHeaders snapshots the defaults and applies extra on top.
func (c *Client) callHeaders(extra map[string]string) (*HeaderStore, error) {
	if err := validateHeaders(extra); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.headers.Merge(extra), nil
}

func (c *Client) do(ctx context.Context, spec *requestSpec) (*Response, error) {
	ex, err := c.send(ctx, c.httpClient, spec)
	if err != nil {
		return nil, err
	}
	resp := c.extractResponse(ex, spec.method, spec.url)
	ex.rc.End(ex.ctx, resp.StatusCode, resp.RemoteAddress, nil)
	return resp, nil
}

func (c *Client) doStream(ctx context.Context, spec *requestSpec) (*Stream, error) {
	ex, err := c.send(ctx, c.streamClient, spec)
	if err != nil {
		return nil, err
	}
	s := newStream(ex, c.metrics)
	ex.rc.End(ex.ctx, s.statusCode, s.remoteAddress, nil)
	return s, nil
}

// exchange is one sent request and the raw response it produced.
type exchange struct {
	ctx  context.Context
	raw  *http.Response
	peer *peerRecorder
	rc   *observability.RequestContext
	log  *logger.Logger
}

func (c *Client) send(ctx context.Context, hc *http.Client, spec *requestSpec) (*exchange, error) {
	requestID := uuid.NewString()
	ctx, rc := observability.StartRequest(ctx, spec.method, spec.url, requestID, c.metrics)
	log := c.log.WithContext(ctx).WithFields(logger.Fields(
		logger.FieldRequestID, requestID,
		logger.FieldMethod, spec.method,
		logger.FieldURL, spec.url,
	))

	var body io.Reader
	if spec.hasBody {
		body = bytes.NewReader(spec.body)
		log.Trace("request body", logger.Fields("body", string(spec.body)))
	}

	peer := &peerRecorder{}
	traced := httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{GotConn: peer.gotConn})
	req, err := http.NewRequestWithContext(traced, spec.method, spec.url, body)
	if err != nil {
		return nil, c.fail(ctx, rc, log, spec, err)
	}
	spec.headers.apply(req.Header)
	if host, ok := spec.headers.Get("Host"); ok {
		req.Host = host
	}

	start := time.Now()
	raw, err := hc.Do(req)
	if err != nil {
		return nil, c.fail(ctx, rc, log, spec, err)
	}
	log.Debug("response received", logger.Fields(
		logger.FieldStatus, raw.StatusCode,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))

	return &exchange{ctx: ctx, raw: raw, peer: peer, rc: rc, log: log}, nil
}

func (c *Client) fail(ctx context.Context, rc *observability.RequestContext, log *logger.Logger, spec *requestSpec, err error) error {
	rc.End(ctx, 0, "", err)
	log.Error("request failed", logger.Fields(logger.FieldError, err.Error()))
	return NewTransportError(spec.method, spec.url, err)
}

// peerRecorder keeps the address of the last connection used by a request.
// Redirect hops run one after another, so the last one is the peer that
// answered.
type peerRecorder struct {
	mu   sync.Mutex
	addr string
}

func (p *peerRecorder) gotConn(info httptrace.GotConnInfo) {
	if info.Conn == nil {
		return
	}
	ip := peerIP(info.Conn.RemoteAddr())
	if ip == "" {
		return
	}
	p.mu.Lock()
	p.addr = ip
	p.mu.Unlock()
}

func (p *peerRecorder) get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addr
}

func peerIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return strings.TrimSpace(addr.String())
	}
	return host
}

// remoteAddress returns the observed peer IP or UnknownRemoteAddress.
func (ex *exchange) remoteAddress() string {
	if addr := ex.peer.get(); addr != "" {
		return addr
	}
	ex.log.Warn("remote address not found, using " + UnknownRemoteAddress)
	return UnknownRemoteAddress
}
