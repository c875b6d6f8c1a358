// Package tlstest generates throw-away certificates for tests.
// Everything is created with the crypto stdlib and written under t.TempDir().
//
// Usage:
//
//	func TestWithTLS(t *testing.T) {
//	    ca := tlstest.NewAuthority(t)
//	    srv.TLS = &tls.Config{Certificates: []tls.Certificate{ca.Issue(t, "localhost")}}
//	    trust := security.LoadTrust(security.TrustSettings{CertDir: ca.Dir}, nil)
//	}
package tlstest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// Authority is a test certificate authority.
type Authority struct {
	// Dir holds ca.pem and nothing else, so it can be used as a trust
	// directory directly.
	Dir string
	// CAFile is the path to the CA certificate PEM file.
	CAFile string
	// CACert is the parsed CA certificate.
	CACert *x509.Certificate
	// CAKey is the CA private key, used to sign issued certificates.
	CAKey *ecdsa.PrivateKey
	// CertPool contains only the CA certificate.
	CertPool *x509.CertPool

	serial atomic.Int64
}

// NewAuthority generates a self-signed CA and writes it to Dir/ca.pem.
func NewAuthority(t testing.TB) *Authority {
	t.Helper()
	dir := t.TempDir()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("tlstest: generate CA key: %v", err)
	}

	caTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"BachueTech Test CA"},
			CommonName:   "Test CA",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("tlstest: create CA cert: %v", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		t.Fatalf("tlstest: parse CA cert: %v", err)
	}

	caFile := filepath.Join(dir, "ca.pem")
	writePEM(t, caFile, "CERTIFICATE", caDER)

	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	a := &Authority{
		Dir:      dir,
		CAFile:   caFile,
		CACert:   caCert,
		CAKey:    caKey,
		CertPool: pool,
	}
	a.serial.Store(1)
	return a
}

// Issue signs a server certificate for hosts. Entries that parse as IP
// addresses become IP SANs, the rest DNS SANs.
func (a *Authority) Issue(t testing.TB, hosts ...string) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("tlstest: generate server key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(a.serial.Add(1)),
		Subject: pkix.Name{
			Organization: []string{"BachueTech Test"},
		},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().Add(24 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}
	if len(hosts) > 0 {
		tmpl.Subject.CommonName = hosts[0]
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, a.CACert, &key.PublicKey, a.CAKey)
	if err != nil {
		t.Fatalf("tlstest: create server cert: %v", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("tlstest: parse server cert: %v", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}
}

// WriteInvalidPEM writes a file that looks like PEM but holds no valid
// certificate. Returns the file path.
func WriteInvalidPEM(t testing.TB, dir, filename string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	content := []byte("-----BEGIN CERTIFICATE-----\nnot-valid-base64-data\n-----END CERTIFICATE-----\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("tlstest: write invalid PEM: %v", err)
	}
	return path
}

// CopyCA copies the CA certificate into dir under filename.
func (a *Authority) CopyCA(t testing.TB, dir, filename string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	writePEM(t, path, "CERTIFICATE", a.CACert.Raw)
	return path
}

func writePEM(t testing.TB, path, blockType string, data []byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("tlstest: create %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: data}); err != nil {
		t.Fatalf("tlstest: encode PEM %s: %v", path, err)
	}
}
