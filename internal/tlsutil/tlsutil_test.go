package tlsutil

import (
	"crypto/tls"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientConfig(t *testing.T) {
	cfg, err := ClientConfig(nil)
	if err != nil {
		t.Fatalf("ClientConfig: %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %d, want %d", cfg.MinVersion, tls.VersionTLS12)
	}
	if cfg.RootCAs != nil {
		t.Error("RootCAs should be nil without a CA bundle")
	}
	for _, cs := range cfg.CipherSuites {
		switch cs {
		case tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305:
		default:
			t.Errorf("non-AEAD cipher suite: %x", cs)
		}
	}
}

func TestClientConfig_BadBundle(t *testing.T) {
	_, err := ClientConfig([]byte("not a certificate"))
	if !errors.Is(err, ErrNoCertificates) {
		t.Errorf("err = %v, want ErrNoCertificates", err)
	}
}

func TestHTTPClient_TrustsCustomCA(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	// 未追加 CA 时自签名证书应被拒绝
	plain, err := HTTPClient(5*time.Second, nil)
	if err != nil {
		t.Fatalf("HTTPClient: %v", err)
	}
	if resp, err := plain.Get(srv.URL); err == nil {
		resp.Body.Close()
		t.Fatal("expected certificate verification failure")
	}

	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	client, err := HTTPClient(5*time.Second, caPEM)
	if err != nil {
		t.Fatalf("HTTPClient: %v", err)
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.Timeout)
	}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET with custom CA: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
}
