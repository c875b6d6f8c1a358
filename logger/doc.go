// Package logger provides structured logging for bt-http-utils using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with structured fields. The HTTP client emits its
// diagnostics (unused parameters, missing peer addresses, read faults,
// certificate faults) through this package.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("httpclient")
//	log.Warn("remote address not found", logger.Fields("url", u))
package logger
