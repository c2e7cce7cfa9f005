// Package tlsconfig loads broker TLS material once at startup.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"enrollgate/internal/platform/config"
)

// Load builds a *tls.Config from the configured CA and client key pair.
// Returns nil when no CA is configured, which callers treat as plaintext.
func Load(cfg config.TLS) (*tls.Config, error) {
	if cfg.CAPath == "" {
		return nil, nil
	}

	caPEM, err := os.ReadFile(cfg.CAPath)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates parsed from %s", cfg.CAPath)
	}

	out := &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}

	if cfg.CertPath != "" || cfg.KeyPath != "" {
		pair, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client key pair: %w", err)
		}
		out.Certificates = []tls.Certificate{pair}
	}

	return out, nil
}
