package httpclient

import "strings"

// ResolveURL substitutes "{key}" placeholders in template with the matching
// values of params. Every occurrence is replaced; names match exactly and
// values are inserted unescaped. The returned map holds the params that
// matched no placeholder. params itself is never modified.
//
//	ResolveURL("/api/{id}", map[string]string{"id": "7", "x": "9"})
//	// "/api/7", map[x:9]
func ResolveURL(template string, params map[string]string) (string, map[string]string) {
	remaining := make(map[string]string, len(params))
	if len(params) == 0 {
		return template, remaining
	}

	resolved := template
	for _, key := range sortedKeys(params) {
		placeholder := "{" + key + "}"
		if strings.Contains(resolved, placeholder) {
			resolved = strings.ReplaceAll(resolved, placeholder, params[key])
			continue
		}
		remaining[key] = params[key]
	}
	return resolved, remaining
}
