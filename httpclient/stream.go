package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bachuetech/bt-http-utils/logger"
	"github.com/bachuetech/bt-http-utils/observability"
)

// maxStreamReadErrors is how many failed chunk reads a Stream tolerates
// over its lifetime; the next failure ends the stream.
const maxStreamReadErrors = 5

// Stream pulls a response body one chunk at a time. A Stream must be driven
// by one goroutine; Next is not safe for concurrent use.
//
//	s, err := client.PostStream(ctx, url, nil, body, httpclient.ContentJSON)
//	if err != nil { ... }
//	defer s.Close()
//	for chunk, ok := s.Next(); ok; chunk, ok = s.Next() {
//	    fmt.Print(chunk.Body)
//	}
type Stream struct {
	statusCode     int
	reason         string
	initialHeaders map[string]string
	url            string
	remoteAddress  string
	errorCount     int

	resp    *http.Response
	buf     []byte
	done    bool
	closed  bool
	ctx     context.Context
	log     *logger.Logger
	metrics *observability.ClientMetrics
}

func newStream(ex *exchange, metrics *observability.ClientMetrics) *Stream {
	raw := ex.raw
	url := ""
	if raw.Request != nil && raw.Request.URL != nil {
		url = raw.Request.URL.String()
	}
	s := &Stream{
		statusCode:     raw.StatusCode,
		reason:         statusReason(raw.StatusCode),
		initialHeaders: flattenHeaders(raw.Header),
		url:            url,
		remoteAddress:  ex.remoteAddress(),
		resp:           raw,
		ctx:            ex.ctx,
		log:            ex.log,
		metrics:        metrics,
	}
	if s.IsError() {
		// The diagnostic never needs the body.
		s.release()
	} else {
		s.buf = make([]byte, chunkSize)
	}
	return s
}

// Next returns the next chunk. ok is false once the body is exhausted or
// the read error ceiling is exceeded, and stays false afterwards.
//
// For a 4xx/5xx response every call returns the same diagnostic Response.
// A failed read below the ceiling yields a Response with an empty Body; keep
// polling. Data returned by the read that exceeds the ceiling is dropped.
func (s *Stream) Next() (*Response, bool) {
	if s.IsError() {
		s.log.Error("stream has error status", logger.Fields(logger.FieldStatus, s.statusCode, "reason", s.reason))
		return &Response{
			StatusCode:    s.statusCode,
			Headers:       s.InitialHeaders(),
			Body:          fmt.Sprintf("ERROR: Failed to read stream response from %s. Status: %s.", s.url, s.reason),
			RemoteAddress: s.remoteAddress,
		}, true
	}
	if s.done {
		return nil, false
	}

	n, err := s.resp.Body.Read(s.buf)
	if n > 0 {
		chunk := s.chunk(decodeLossy(s.buf[:n]))
		if err != nil {
			s.readFailed(err)
			if s.done && !errors.Is(err, io.EOF) {
				return nil, false
			}
		}
		return chunk, true
	}

	switch {
	case err == nil:
		return s.chunk(""), true
	case errors.Is(err, io.EOF):
		s.finish()
		return nil, false
	default:
		s.readFailed(err)
		if s.done {
			return nil, false
		}
		return s.chunk(""), true
	}
}

// readFailed counts a failed read; EOF ends the stream normally.
func (s *Stream) readFailed(err error) {
	if errors.Is(err, io.EOF) {
		s.finish()
		return
	}
	s.errorCount++
	s.metrics.RecordReadError(s.ctx, observability.ReadModeStream)
	fields := logger.Fields(logger.FieldError, NewBodyReadError(s.url, err).Error(), "errors", s.errorCount)
	if s.errorCount > maxStreamReadErrors {
		s.log.Error("too many stream read errors, stopping", fields)
		s.finish()
		return
	}
	s.log.Error("stream read failed", fields)
}

func (s *Stream) chunk(body string) *Response {
	headers := flattenHeaders(s.resp.Header)
	for k, v := range flattenHeaders(s.resp.Trailer) {
		headers[k] = v
	}
	return &Response{
		StatusCode:    s.statusCode,
		Headers:       headers,
		Body:          body,
		RemoteAddress: s.remoteAddress,
	}
}

func (s *Stream) finish() {
	s.done = true
	s.release()
}

func (s *Stream) release() {
	if s.closed {
		return
	}
	s.closed = true
	_ = s.resp.Body.Close()
}

// Close releases the connection. Further Next calls return (nil, false),
// except for error-status streams which keep returning their diagnostic.
func (s *Stream) Close() error {
	s.done = true
	s.release()
	return nil
}

// IsError reports whether the response status is 4xx or 5xx.
func (s *Stream) IsError() bool { return isErrorStatus(s.statusCode) }

// StatusCode returns the response status code.
func (s *Stream) StatusCode() int { return s.statusCode }

// InitialHeaders returns a copy of the headers received with the status.
func (s *Stream) InitialHeaders() map[string]string {
	h := make(map[string]string, len(s.initialHeaders))
	for k, v := range s.initialHeaders {
		h[k] = v
	}
	return h
}

// URL returns the final request URL.
func (s *Stream) URL() string { return s.url }

// RemoteAddress returns the IP of the peer, or UnknownRemoteAddress.
func (s *Stream) RemoteAddress() string { return s.remoteAddress }
