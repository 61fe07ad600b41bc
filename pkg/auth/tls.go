package auth

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
)

// TLSConfig describes the certificate material for one endpoint.
type TLSConfig struct {
	CertFile          string
	KeyFile           string
	CAFile            string
	RequireClientCert bool
}

// ServerTLS builds the server-side TLS configuration, optionally
// requiring and verifying client certificates.
func ServerTLS(cfg TLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, errors.Join(pkgerrors.ErrTLS, fmt.Errorf("failed to load server key pair: %w", err))
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.RequireClientCert {
		pool, err := loadCAPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return tlsCfg, nil
}

// ClientTLS builds the client-side TLS configuration with an optional
// client certificate for mutual authentication.
func ClientTLS(cfg TLSConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if cfg.CAFile != "" {
		pool, err := loadCAPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.Join(pkgerrors.ErrTLS, fmt.Errorf("failed to load client key pair: %w", err))
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, errors.Join(pkgerrors.ErrTLS, errors.New("ca file not set"))
	}

	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(pkgerrors.ErrTLS, fmt.Errorf("failed to read ca file: %w", err))
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.Join(pkgerrors.ErrTLS, errors.New("no valid certificates in ca file"))
	}

	return pool, nil
}

// CertAuthenticator resolves the node identity from the subject common
// name of a verified peer certificate.
type CertAuthenticator struct{}

func NewCertAuthenticator() *CertAuthenticator {
	return &CertAuthenticator{}
}

func (c *CertAuthenticator) Mint(nodeID string) (Credential, error) {
	return Credential{}, errors.Join(pkgerrors.ErrAuthenticationFailed,
		errors.New("certificates are provisioned out of band"))
}

// Verify expects the credential value to carry the peer subject CN,
// extracted from the TLS connection state by the transport.
func (c *CertAuthenticator) Verify(cred Credential) (string, error) {
	if cred.Value == "" {
		return "", errors.Join(pkgerrors.ErrAuthenticationFailed, errors.New("empty subject cn"))
	}

	return cred.Value, nil
}

// NodeIDFromConnState pulls the subject CN from a completed handshake.
func NodeIDFromConnState(state tls.ConnectionState) (string, error) {
	if len(state.PeerCertificates) == 0 {
		return "", errors.Join(pkgerrors.ErrAuthenticationFailed, errors.New("no peer certificate"))
	}

	cn := state.PeerCertificates[0].Subject.CommonName
	if cn == "" {
		return "", errors.Join(pkgerrors.ErrAuthenticationFailed, errors.New("empty subject cn"))
	}

	return cn, nil
}
