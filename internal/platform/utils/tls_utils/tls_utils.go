package tls_utils

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"

	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
)

type TlsConfigFunc func(*tls.Config) error

var ErrNoCACerts = errors.New("no CA certificates found in file")

func WithCert(certFilePath string, certKeyPath string) TlsConfigFunc {
	return func(tlsConfig *tls.Config) error {
		logger.Log.Debug("TLS config - loading client key pair from ", certFilePath)

		cert, err := tls.LoadX509KeyPair(certFilePath, certKeyPath)
		if err != nil {
			return err
		}

		tlsConfig.Certificates = []tls.Certificate{cert}

		return nil
	}
}

func WithCACerts(caCertFilePath string) TlsConfigFunc {
	return func(tlsConfig *tls.Config) error {
		logger.Log.Debug("TLS config - loading CA certs from ", caCertFilePath)

		pemCerts, err := os.ReadFile(caCertFilePath)
		if err != nil {
			return err
		}

		certpool := x509.NewCertPool()
		if !certpool.AppendCertsFromPEM(pemCerts) {
			return ErrNoCACerts
		}

		tlsConfig.RootCAs = certpool

		return nil
	}
}

func WithSkipVerify() TlsConfigFunc {
	return func(tlsConfig *tls.Config) error {
		logger.Log.Warn("TLS config - skipping server certificate verification")

		tlsConfig.InsecureSkipVerify = true

		return nil
	}
}

func NewTlsConfig(configOpts ...TlsConfigFunc) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	for _, opt := range configOpts {
		err := opt(tlsConfig)
		if err != nil {
			return nil, err
		}
	}

	return tlsConfig, nil
}
