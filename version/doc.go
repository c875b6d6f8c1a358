// Package version reports build information for bthttp.
//
// Version, commit and build time are set at compile time via -ldflags:
//
//	go build -ldflags "-X github.com/bachuetech/bt-http-utils/version.Version=1.0.0"
package version
