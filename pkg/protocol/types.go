// Package protocol implements the two wire formats spoken by gamenet:
//
//  client frame:   [length:4][head:H][body]           (length = H + len(body))
//  proxy envelope: [envLen:4][hdrLen:4][hdr][client frame]
//
// All integers are big-endian. H is fixed per codec and one of 0, 1, 2, 4, 8.
// Decoders are streaming and cumulative: they accept arbitrary chunks of a
// byte stream and emit one value per complete frame.
package protocol

import (
    "errors"
    "fmt"
)

const (
    // LengthFieldSize is the size of every length prefix.
    LengthFieldSize = 4
    // DefaultMaxBodySize bounds the declared body size of a decoded frame.
    DefaultMaxBodySize = 10 * 1024
)

var (
    // ErrFrameTooLarge is returned when a declared body exceeds the limit.
    // Buffered input is discarded and the connection must be closed.
    ErrFrameTooLarge = errors.New("frame exceeds max body size")
    // ErrShortFrame reports a declared length smaller than its fixed fields.
    ErrShortFrame = errors.New("short frame")
    // ErrMissingBody reports a message with neither raw bytes nor a body codec.
    ErrMissingBody = errors.New("message has no raw bytes and no body codec")
    // ErrLengthMismatch reports a WebSocket payload whose length field does
    // not match the payload size.
    ErrLengthMismatch = errors.New("length field does not match payload")
    // ErrEmptyEnvelope reports a ProxyMessage without an inner message.
    ErrEmptyEnvelope = errors.New("proxy message has no inner message")
)

// ErrHeadSize is returned for a head width outside {0,1,2,4,8}.
type ErrHeadSize int

func (e ErrHeadSize) Error() string { return fmt.Sprintf("unsupported head size %d", int(e)) }

// ErrFieldTooLong reports a routing header field above MaxFieldLen bytes.
type ErrFieldTooLong struct {
    Field string
    Len   int
}

func (e *ErrFieldTooLong) Error() string {
    return fmt.Sprintf("proxy head %s too long: %d > %d", e.Field, e.Len, MaxFieldLen)
}

// ErrUnsupportedMessage is returned by encoders for values they cannot write.
type ErrUnsupportedMessage struct{ Value any }

func (e *ErrUnsupportedMessage) Error() string {
    return fmt.Sprintf("unsupported message type %T", e.Value)
}
