// Package httpclient provides a configurable HTTP client that resolves URL
// templates, encodes JSON or TEXT bodies and returns either a buffered
// Response or a chunked Stream.
//
// # Basic Usage
//
//	client, err := httpclient.New(httpclient.Config{
//	    Headers:    map[string]string{"Accept": "application/json"},
//	    UseCookies: true,
//	})
//
//	resp, err := client.Request(ctx, "GET", "https://api.example.com/users/{id}",
//	    nil, nil, map[string]string{"id": "123", "expand": "roles"},
//	    httpclient.ContentJSON)
//	// GET https://api.example.com/users/123?expand=roles
//
// Placeholders are resolved by ResolveURL. For GET the unmatched parameters
// become the query string; for POST, PUT, DELETE and PATCH the body
// parameters are encoded according to the ContentType.
//
// # Errors
//
// A call returns an error only when nothing usable came back: an
// unsupported method, an invalid header or a transport failure. HTTP error
// statuses produce a Response whose IsError reports true and whose Body is
// a diagnostic message. Failed body reads are retried a bounded number of
// times and never surface as errors.
//
// # Streaming
//
//	s, err := client.PostStream(ctx, url, nil, `{"prompt":"hi"}`, httpclient.ContentJSON)
//	if err != nil { ... }
//	defer s.Close()
//	for chunk, ok := s.Next(); ok; chunk, ok = s.Next() {
//	    fmt.Print(chunk.Body)
//	}
//
// Trust anchors and TLS overrides are configured through Config.Trust; see
// package security.
package httpclient
