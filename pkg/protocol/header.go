package protocol

import (
    "encoding/binary"

    "gamenet/pkg/buffer"
)

// ValidHeadSize reports whether n is a supported head width.
func ValidHeadSize(n int) error {
    switch n {
    case 0, 1, 2, 4, 8:
        return nil
    }
    return ErrHeadSize(n)
}

// ReadHead reads a head of the given width from the start of p.
// Widths narrower than 8 bytes are zero-extended.
func ReadHead(p []byte, size int) uint64 {
    switch size {
    case 1:
        return uint64(p[0])
    case 2:
        return uint64(binary.BigEndian.Uint16(p))
    case 4:
        return uint64(binary.BigEndian.Uint32(p))
    case 8:
        return binary.BigEndian.Uint64(p)
    }
    return 0
}

// PutHead appends head truncated to size bytes.
func PutHead(b *buffer.Buffer, size int, head uint64) {
    switch size {
    case 1:
        b.WriteByte(byte(head))
    case 2:
        b.WriteUint16(uint16(head))
    case 4:
        b.WriteUint32(uint32(head))
    case 8:
        b.WriteUint64(head)
    }
}
