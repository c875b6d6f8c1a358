package httpclient

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// HeaderStore is an ordered header container with case-insensitive names.
// Names are stored lower-cased and iterate in insertion order. A store is
// not safe for concurrent mutation; the client guards its defaults and hands
// each call a private copy.
type HeaderStore struct {
	keys   []string
	values map[string]string
}

// NewHeaderStore returns an empty store.
func NewHeaderStore() *HeaderStore {
	return &HeaderStore{values: make(map[string]string)}
}

// Set stores value under name, replacing any previous value.
func (h *HeaderStore) Set(name, value string) {
	key := strings.ToLower(name)
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = value
}

// Get returns the value stored under name.
func (h *HeaderStore) Get(name string) (string, bool) {
	v, ok := h.values[strings.ToLower(name)]
	return v, ok
}

// Del removes name from the store.
func (h *HeaderStore) Del(name string) {
	key := strings.ToLower(name)
	if _, ok := h.values[key]; !ok {
		return
	}
	delete(h.values, key)
	for i, k := range h.keys {
		if k == key {
			h.keys = append(h.keys[:i], h.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of headers.
func (h *HeaderStore) Len() int { return len(h.keys) }

// Keys returns the lower-cased names in insertion order.
func (h *HeaderStore) Keys() []string {
	return append([]string(nil), h.keys...)
}

// Clone returns an independent copy.
func (h *HeaderStore) Clone() *HeaderStore {
	c := &HeaderStore{
		keys:   append([]string(nil), h.keys...),
		values: make(map[string]string, len(h.values)),
	}
	for k, v := range h.values {
		c.values[k] = v
	}
	return c
}

// Merge returns a copy of h with extra applied on top. Values from extra
// win on collision; new names are appended in sorted order.
func (h *HeaderStore) Merge(extra map[string]string) *HeaderStore {
	c := h.Clone()
	for _, k := range sortedKeys(extra) {
		c.Set(k, extra[k])
	}
	return c
}

// Map returns a copy of the headers keyed by lower-cased name.
func (h *HeaderStore) Map() map[string]string {
	m := make(map[string]string, len(h.values))
	for k, v := range h.values {
		m[k] = v
	}
	return m
}

// apply writes every header into dst.
func (h *HeaderStore) apply(dst http.Header) {
	for _, k := range h.keys {
		dst.Set(k, h.values[k])
	}
}

// validateHeader rejects names and values net/http would refuse to send.
func validateHeader(name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return NewValidationError("invalid header name "+strconv.Quote(name), nil)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return NewValidationError("invalid value for header "+name, nil)
	}
	return nil
}

func validateHeaders(headers map[string]string) error {
	for _, k := range sortedKeys(headers) {
		if err := validateHeader(k, headers[k]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
