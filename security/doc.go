// Package security loads local trust anchors and TLS verification overrides
// for the HTTP client.
//
// # Trust anchors
//
// LoadTrust scans a directory (non-recursively) for *.pem files and adds
// every certificate it finds to the roots used by the client transport.
// Files that cannot be read or parsed are logged and skipped.
//
//	trust := security.LoadTrust(security.TrustSettings{
//	    CertDir: "/etc/bt/certs",
//	    DangerOverrides: []security.DangerOverride{
//	        {Name: security.DangerAcceptInvalidHostnames, Enabled: true},
//	    },
//	}, log)
//
//	transport.TLSClientConfig = trust.TLSConfig()
//
// When CertDir is empty the BTLOCALPEMCERTIFICATES environment variable is
// used, and "certs" when that is unset.
package security
