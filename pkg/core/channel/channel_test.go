package channel

import (
    "errors"
    "net"
    "testing"
    "time"

    "gamenet/pkg/protocol"
    "gamenet/pkg/protocol/codec"
)

type recorder struct {
    events chan Event
    msgs   chan *protocol.Message
    errs   chan error
}

func newRecorder() *recorder {
    return &recorder{events: make(chan Event, 16), msgs: make(chan *protocol.Message, 16), errs: make(chan error, 4)}
}

func (r *recorder) OnStatus(_ *Channel, ev Event) { r.events <- ev }
func (r *recorder) OnMessage(_ *Channel, msg any) { r.msgs <- msg.(*protocol.Message) }
func (r *recorder) OnError(_ *Channel, err error) { r.errs <- err }

func (r *recorder) waitEvent(t *testing.T, want Event) {
    t.Helper()
    deadline := time.After(2 * time.Second)
    for {
        select {
        case ev := <-r.events:
            if ev == want { return }
        case <-deadline:
            t.Fatalf("no %v event", want)
        }
    }
}

func (r *recorder) waitMsg(t *testing.T) *protocol.Message {
    t.Helper()
    select {
    case m := <-r.msgs:
        return m
    case <-time.After(2 * time.Second):
        t.Fatalf("no message")
        return nil
    }
}

func testCodec(t *testing.T, maxBody int) protocol.Codec {
    t.Helper()
    c, err := protocol.NewClientCodec(protocol.Options{HeadSize: 2, MaxBodySize: maxBody, Body: codec.String()})
    if err != nil { t.Fatalf("codec: %v", err) }
    return c
}

// pair attaches two channels to the ends of an in-memory pipe.
func pair(t *testing.T, oa, ob Options, maxBody int) (*Channel, *recorder, *Channel, *recorder) {
    t.Helper()
    a, b := net.Pipe()
    ra, rb := newRecorder(), newRecorder()
    ca, cb := New(oa, ra), New(ob, rb)
    ca.Attach(NewStreamLink(a, testCodec(t, maxBody)))
    cb.Attach(NewStreamLink(b, testCodec(t, maxBody)))
    t.Cleanup(func() { _ = ca.Close(); _ = cb.Close() })
    ra.waitEvent(t, EventConnected)
    rb.waitEvent(t, EventConnected)
    return ca, ra, cb, rb
}

func TestWriteAndFlushDelivers(t *testing.T) {
    ca, _, _, rb := pair(t, Options{}, Options{}, 0)
    if err := ca.WriteAndFlush(protocol.NewMessage(9, "hello")); err != nil { t.Fatalf("write: %v", err) }
    m := rb.waitMsg(t)
    if m.Head != 9 || m.Body != "hello" { t.Fatalf("got %+v", m) }
    if sent, _ := ca.Stats(); sent != 11 { t.Fatalf("sent %d", sent) }
}

func TestWriteOrderIsPreserved(t *testing.T) {
    ca, _, _, rb := pair(t, Options{}, Options{}, 0)
    go func() {
        for i := 0; i < 20; i++ {
            _ = ca.Write(protocol.NewMessage(uint64(i), "x"))
        }
        _ = ca.Flush()
    }()
    for i := 0; i < 20; i++ {
        if m := rb.waitMsg(t); m.Head != uint64(i) { t.Fatalf("message %d has head %d", i, m.Head) }
    }
}

func TestCloseIsIdempotent(t *testing.T) {
    ca, ra, _, rb := pair(t, Options{}, Options{}, 0)
    if err := ca.Close(); err != nil { t.Fatalf("close: %v", err) }
    if err := ca.Close(); err != nil { t.Fatalf("second close: %v", err) }
    ra.waitEvent(t, EventInactive)
    rb.waitEvent(t, EventInactive)
    select {
    case ev := <-ra.events:
        t.Fatalf("unexpected event after close: %v", ev)
    case err := <-ra.errs:
        t.Fatalf("local close reported an error: %v", err)
    case <-time.After(50 * time.Millisecond):
    }
    if ca.State() != StateClosed { t.Fatalf("state %v", ca.State()) }
    if err := ca.WriteAndFlush(protocol.NewMessage(1, "late")); !errors.Is(err, ErrClosed) {
        t.Fatalf("want ErrClosed, got %v", err)
    }
}

func TestAutoFlush(t *testing.T) {
    ca, _, _, rb := pair(t, Options{AutoFlush: 10 * time.Millisecond}, Options{}, 0)
    if err := ca.Write(protocol.NewMessage(1, "buffered")); err != nil { t.Fatalf("write: %v", err) }
    if m := rb.waitMsg(t); m.Body != "buffered" { t.Fatalf("got %+v", m) }
    if err := ca.SetAutoFlush(time.Second); !errors.Is(err, ErrAutoFlushSet) {
        t.Fatalf("want ErrAutoFlushSet, got %v", err)
    }
}

func TestReadTimeoutCloses(t *testing.T) {
    _, ra, _, _ := pair(t, Options{ReadTimeout: 50 * time.Millisecond}, Options{}, 0)
    select {
    case err := <-ra.errs:
        if !errors.Is(err, ErrReadTimeout) { t.Fatalf("want ErrReadTimeout, got %v", err) }
    case <-time.After(2 * time.Second):
        t.Fatalf("read timeout did not fire")
    }
    ra.waitEvent(t, EventInactive)
}

func TestIdleEventKeepsChannelOpen(t *testing.T) {
    ca, ra, _, _ := pair(t, Options{IdleTimeout: 30 * time.Millisecond}, Options{}, 0)
    ra.waitEvent(t, EventIdle)
    if !ca.IsConnected() { t.Fatalf("idle closed the channel") }
}

func TestOversizeFrameClosesChannel(t *testing.T) {
    _, _, cb, rb := pair(t, Options{}, Options{}, 4)
    a, b := net.Pipe()
    _ = cb.Close()
    rb.waitEvent(t, EventInactive)
    cb.Attach(NewStreamLink(b, testCodec(t, 4)))
    rb.waitEvent(t, EventConnected)
    go func() { _, _ = a.Write([]byte{0, 0, 0, 9, 0, 1, 'a', 'b', 'c', 'd', 'e', 'f', 'g'}) }()
    select {
    case err := <-rb.errs:
        if !errors.Is(err, protocol.ErrFrameTooLarge) { t.Fatalf("want ErrFrameTooLarge, got %v", err) }
    case <-time.After(2 * time.Second):
        t.Fatalf("oversize frame accepted")
    }
    rb.waitEvent(t, EventInactive)
    select {
    case m := <-rb.msgs:
        t.Fatalf("message emitted: %+v", m)
    default:
    }
}

func TestFloodGuardDropsExcess(t *testing.T) {
    ca, _, _, rb := pair(t, Options{}, Options{MsgRate: 0.001, MsgBurst: 2}, 0)
    for i := 0; i < 5; i++ {
        _ = ca.Write(protocol.NewMessage(uint64(i), "m"))
    }
    _ = ca.Flush()
    rb.waitMsg(t)
    rb.waitMsg(t)
    select {
    case m := <-rb.msgs:
        t.Fatalf("throttled message delivered: %+v", m)
    case <-time.After(100 * time.Millisecond):
    }
}

func TestIdentityAndAttributes(t *testing.T) {
    ch := New(Options{}, nil)
    if !ch.SetIdentity("gate-1") || ch.SetIdentity("gate-2") { t.Fatalf("identity should be settable once") }
    if ch.Identity() != "gate-1" { t.Fatalf("identity %v", ch.Identity()) }
    ch.SetAttribute("uid", 42)
    if v, ok := ch.Attribute("uid"); !ok || v != 42 { t.Fatalf("attribute %v %v", v, ok) }
    ch.DeleteAttribute("uid")
    if _, ok := ch.Attribute("uid"); ok { t.Fatalf("attribute not deleted") }
    if ch.State() != StateIdle || !ch.MarkConnecting() || ch.MarkConnecting() { t.Fatalf("connecting transition") }
    ch.MarkConnectFailed()
    if ch.State() != StateClosed { t.Fatalf("state %v", ch.State()) }
}
