package transform

import (
    "crypto/rc4"
    "fmt"

    "golang.org/x/crypto/chacha20"

    "gamenet/pkg/buffer"
)

// MinRC4KeyLen is the shortest key NewRC4 accepts.
const MinRC4KeyLen = 16

// RC4 XORs every body with an RC4 keystream started fresh per message, so
// encryption and decryption are the same transformer. Body length never
// changes.
type RC4 struct {
    key []byte
}

func NewRC4(key string) (*RC4, error) {
    if len(key) < MinRC4KeyLen {
        return nil, fmt.Errorf("rc4: key must be at least %d bytes, got %d", MinRC4KeyLen, len(key))
    }
    if _, err := rc4.NewCipher([]byte(key)); err != nil {
        return nil, fmt.Errorf("rc4: %w", err)
    }
    return &RC4{key: []byte(key)}, nil
}

func (c *RC4) Transform(_ uint64, body *buffer.Buffer) error {
    s, err := rc4.NewCipher(c.key)
    if err != nil { return err }
    p := body.Readable()
    s.XORKeyStream(p, p)
    return nil
}

// ChaCha20 is the length-preserving ChaCha20 counterpart of RC4: the
// keystream restarts from the configured key and nonce for every message.
type ChaCha20 struct {
    key   []byte
    nonce []byte
}

func NewChaCha20(key, nonce []byte) (*ChaCha20, error) {
    if _, err := chacha20.NewUnauthenticatedCipher(key, nonce); err != nil {
        return nil, fmt.Errorf("chacha20: %w", err)
    }
    return &ChaCha20{key: append([]byte(nil), key...), nonce: append([]byte(nil), nonce...)}, nil
}

func (c *ChaCha20) Transform(_ uint64, body *buffer.Buffer) error {
    s, err := chacha20.NewUnauthenticatedCipher(c.key, c.nonce)
    if err != nil { return err }
    p := body.Readable()
    s.XORKeyStream(p, p)
    return nil
}
