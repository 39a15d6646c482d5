package buffer

import (
    "math/bits"
    "sync"
)

const (
    minClassShift = 6  // 64 B
    maxClassShift = 16 // 64 KiB
    numClasses    = maxClassShift - minClassShift + 1
)

// Default is the process-wide allocator used by the codecs.
var Default = NewPool()

// Pool hands out buffers whose backing arrays are recycled per power-of-two
// size class. Requests above the largest class are served unpooled.
type Pool struct {
    classes [numClasses]sync.Pool
}

func NewPool() *Pool {
    p := &Pool{}
    for i := range p.classes {
        size := 1 << (i + minClassShift)
        p.classes[i].New = func() any {
            b := make([]byte, 0, size)
            return &b
        }
    }
    return p
}

// Get returns an empty buffer with capacity of at least n and a reference
// count of one.
func (p *Pool) Get(n int) *Buffer {
    idx := classFor(n)
    var b []byte
    if idx < 0 {
        b = make([]byte, 0, n)
    } else {
        b = (*p.classes[idx].Get().(*[]byte))[:0]
    }
    buf := &Buffer{b: b, pool: p}
    buf.refs.Store(1)
    return buf
}

// Get allocates from the Default pool.
func Get(n int) *Buffer { return Default.Get(n) }

func (p *Pool) put(b []byte) {
    c := cap(b)
    if c == 0 || c&(c-1) != 0 {
        return
    }
    idx := classFor(c)
    if idx < 0 || 1<<(idx+minClassShift) != c {
        return
    }
    b = b[:0]
    p.classes[idx].Put(&b)
}

func classFor(n int) int {
    if n <= 1<<minClassShift {
        return 0
    }
    if n > 1<<maxClassShift {
        return -1
    }
    shift := bits.Len(uint(n - 1))
    return shift - minClassShift
}
