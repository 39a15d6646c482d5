package protocol

import "gamenet/pkg/buffer"

// Message is one client frame. Raw, when present, holds the complete encoded
// frame (length, head and body) with its reader index at the length field;
// the message owns it until released. Body is the decoded application value.
type Message struct {
    Head uint64
    Body any
    raw  *buffer.Buffer
}

// NewMessage returns a message that still has to be encoded.
func NewMessage(head uint64, body any) *Message { return &Message{Head: head, Body: body} }

// NewRawMessage returns a message carrying an encoded frame. Ownership of raw
// moves to the message.
func NewRawMessage(head uint64, raw *buffer.Buffer, body any) *Message {
    return &Message{Head: head, Body: body, raw: raw}
}

// Raw returns the encoded frame or nil.
func (m *Message) Raw() *buffer.Buffer { return m.raw }

// RefCnt is the reference count of the raw frame, 0 without one.
func (m *Message) RefCnt() int32 {
    if m.raw == nil {
        return 0
    }
    return m.raw.RefCnt()
}

func (m *Message) Retain() {
    if m.raw != nil {
        m.raw.Retain()
    }
}

func (m *Message) Release() bool { return m.raw != nil && m.raw.Release() }

// ProxyMessage is a client message plus the routing header added by the
// gateway. It owns Msg and forwards reference counting to it.
type ProxyMessage struct {
    Header any
    Msg    *Message
}

// NewProxyMessage wraps msg. Ownership of msg moves to the envelope.
func NewProxyMessage(header any, msg *Message) *ProxyMessage {
    return &ProxyMessage{Header: header, Msg: msg}
}

// The reference count is the inner message's; an envelope with a nil Msg
// holds nothing and reports zero.
func (p *ProxyMessage) RefCnt() int32 {
    if p.Msg == nil { return 0 }
    return p.Msg.RefCnt()
}

func (p *ProxyMessage) Retain() {
    if p.Msg != nil {
        p.Msg.Retain()
    }
}

func (p *ProxyMessage) Release() bool {
    if p.Msg == nil { return false }
    return p.Msg.Release()
}
