// Package tlsutil builds the hardened TLS client used to reach release
// hosting APIs (TLS 1.2+, AEAD-only cipher suites).
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"time"
)

// ErrNoCertificates is returned when a CA bundle holds no PEM certificates.
var ErrNoCertificates = errors.New("tlsutil: no certificates found in CA bundle")

// ClientConfig returns a hardened client TLS configuration. When caPEM is
// set its certificates are trusted in addition to the system roots, which
// self-hosted GitHub Enterprise instances commonly need.
func ClientConfig(caPEM []byte) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
	if len(caPEM) == 0 {
		return cfg, nil
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, ErrNoCertificates
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// HTTPClient returns an http.Client over a hardened transport.
func HTTPClient(timeout time.Duration, caPEM []byte) (*http.Client, error) {
	tlsCfg, err := ClientConfig(caPEM)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsCfg,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}, nil
}
