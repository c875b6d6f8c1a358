package httpclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/bachuetech/bt-http-utils/logger"
	"github.com/bachuetech/bt-http-utils/observability"
)

const (
	// maxExtractReadErrors is how many failed chunk reads a buffered
	// response tolerates; the next failure ends the body with what was
	// read so far.
	maxExtractReadErrors = 3

	chunkSize = 32 * 1024

	unknownReason = "UNKNOWN ERROR!"
)

// extractResponse turns the raw response into a Response. It never fails:
// read faults are logged and end the body early. The body is always closed.
func (c *Client) extractResponse(ex *exchange, method, url string) *Response {
	raw := ex.raw
	defer func() { _ = raw.Body.Close() }()

	resp := &Response{
		StatusCode:    raw.StatusCode,
		Headers:       flattenHeaders(raw.Header),
		RemoteAddress: ex.remoteAddress(),
	}

	switch {
	case isErrorStatus(raw.StatusCode):
		reason := statusReason(raw.StatusCode)
		ex.log.Error("error status received", logger.Fields(logger.FieldStatus, raw.StatusCode, "reason", reason))
		resp.Body = fmt.Sprintf("ERROR: Failed to get response from %s:%s -Error: %s", method, url, reason)
	case raw.StatusCode >= 200 && raw.StatusCode <= 299:
		resp.Body = c.accumulate(ex, raw.Body, url)
	default:
		data, err := io.ReadAll(raw.Body)
		if err != nil {
			ex.log.Error("failed to read payload", logger.Fields(logger.FieldError, NewBodyReadError(url, err).Error()))
		}
		resp.Body = decodeLossy(data)
	}

	ex.log.Trace("response body", logger.Fields("body", resp.Body))
	return resp
}

// accumulate reads body chunk by chunk, tolerating up to
// maxExtractReadErrors failed reads.
func (c *Client) accumulate(ex *exchange, body io.Reader, url string) string {
	var acc bytes.Buffer
	buf := make([]byte, chunkSize)
	errCount := 0

	for {
		n, err := body.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		errCount++
		c.metrics.RecordReadError(ex.ctx, observability.ReadModeExtract)
		fields := logger.Fields(logger.FieldError, NewBodyReadError(url, err).Error(), "errors", errCount)
		if errCount > maxExtractReadErrors {
			ex.log.Error("too many read errors, returning partial body", fields)
			break
		}
		ex.log.Error("chunk read failed, retrying", fields)
	}
	return decodeLossy(acc.Bytes())
}

func isErrorStatus(code int) bool {
	return code >= 400 && code <= 599
}

// statusReason returns the canonical reason phrase for code.
func statusReason(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return unknownReason
}

// decodeLossy decodes b as UTF-8, replacing invalid sequences with U+FFFD.
func decodeLossy(b []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return string(out)
}
