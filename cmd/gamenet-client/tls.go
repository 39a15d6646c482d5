package main

import "crypto/tls"

// insecureTLS is for test gateways with self-signed certificates.
func insecureTLS() *tls.Config {
    return &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12}
}
