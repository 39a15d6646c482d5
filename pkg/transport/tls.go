package transport

import (
    "crypto/rand"
    "crypto/rsa"
    "crypto/tls"
    "crypto/x509"
    "fmt"
    "math/big"
    "time"
)

// LoadServerTLS loads a certificate/key pair for TLS and WSS acceptors.
func LoadServerTLS(certFile, keyFile string) (*tls.Config, error) {
    cert, err := tls.LoadX509KeyPair(certFile, keyFile)
    if err != nil { return nil, fmt.Errorf("load key pair: %w", err) }
    return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}

// SelfSignedTLS generates a short-lived self-signed certificate for local
// QUIC links and tests.
func SelfSignedTLS(hosts ...string) (*tls.Config, error) {
    priv, err := rsa.GenerateKey(rand.Reader, 2048)
    if err != nil { return nil, err }
    if len(hosts) == 0 {
        hosts = []string{"localhost"}
    }
    tmpl := x509.Certificate{
        SerialNumber:          big.NewInt(time.Now().UnixNano()),
        NotBefore:             time.Now().Add(-time.Minute),
        NotAfter:              time.Now().Add(24 * time.Hour),
        KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
        ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
        BasicConstraintsValid: true,
        DNSNames:              hosts,
    }
    der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
    if err != nil { return nil, err }
    cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
    return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}
