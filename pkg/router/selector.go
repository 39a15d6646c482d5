package router

import (
    "hash/fnv"
    "sort"

    "gamenet/pkg/core/acceptor"
    "gamenet/pkg/core/connector"
    "gamenet/pkg/protocol"
)

// Selector picks the backend server id for a client message.
type Selector func(s acceptor.Session, m *protocol.Message) (serverID int, ok bool)

// Fixed sends everything to one server.
func Fixed(serverID int) Selector {
    return func(acceptor.Session, *protocol.Message) (int, bool) { return serverID, true }
}

// HeadRange routes by message head: heads in [Min, Max] go to ServerID.
type HeadRange struct {
    Min, Max uint64
    ServerID int
}

// ByHead checks ranges in order.
func ByHead(ranges ...HeadRange) Selector {
    return func(_ acceptor.Session, m *protocol.Message) (int, bool) {
        for _, r := range ranges {
            if m.Head >= r.Min && m.Head <= r.Max {
                return r.ServerID, true
            }
        }
        return 0, false
    }
}

// SessionHash pins each session to one of the connected servers of c by
// hashing the session id. A session moves only when the connected set changes.
func SessionHash(c *connector.Connector) Selector {
    return func(s acceptor.Session, _ *protocol.Message) (int, bool) {
        var ids []int
        for _, sc := range c.Channels() {
            if sc.IsConnected() {
                ids = append(ids, sc.Target().ID)
            }
        }
        if len(ids) == 0 {
            return 0, false
        }
        sort.Ints(ids)
        h := fnv.New32a()
        _, _ = h.Write([]byte(s.ID()))
        return ids[int(h.Sum32()%uint32(len(ids)))], true
    }
}
