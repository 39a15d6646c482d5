package channel

import "fmt"

// State is the lifecycle state of a Channel.
type State int32

const (
    StateIdle State = iota
    StateConnecting
    StateConnected
    StateClosed
)

func (s State) String() string {
    switch s {
    case StateIdle:
        return "idle"
    case StateConnecting:
        return "connecting"
    case StateConnected:
        return "connected"
    case StateClosed:
        return "closed"
    default:
        return fmt.Sprintf("state(%d)", int32(s))
    }
}

// Event is a status notification delivered to a Handler.
type Event int

const (
    // EventConnect fires before an outbound connect attempt.
    EventConnect Event = iota
    // EventConnectFail fires when an outbound connect attempt fails.
    EventConnectFail
    EventConnected
    EventInactive
    // EventIdle fires when nothing was read for the idle period. The
    // channel stays open.
    EventIdle
)

func (e Event) String() string {
    switch e {
    case EventConnect:
        return "connect"
    case EventConnectFail:
        return "connect_fail"
    case EventConnected:
        return "connected"
    case EventInactive:
        return "inactive"
    case EventIdle:
        return "idle"
    default:
        return fmt.Sprintf("event(%d)", int(e))
    }
}

// Handler receives the callbacks of a channel. Callbacks for one channel
// never run concurrently. OnMessage owns msg and must release it.
type Handler interface {
    OnStatus(ch *Channel, ev Event)
    OnMessage(ch *Channel, msg any)
    OnError(ch *Channel, err error)
}

// Funcs adapts optional functions to a Handler. Unset messages are released.
type Funcs struct {
    Status  func(ch *Channel, ev Event)
    Message func(ch *Channel, msg any)
    Error   func(ch *Channel, err error)
}

func (f Funcs) OnStatus(ch *Channel, ev Event) {
    if f.Status != nil {
        f.Status(ch, ev)
    }
}

func (f Funcs) OnMessage(ch *Channel, msg any) {
    if f.Message != nil {
        f.Message(ch, msg)
        return
    }
    release(msg)
}

func (f Funcs) OnError(ch *Channel, err error) {
    if f.Error != nil {
        f.Error(ch, err)
    }
}
