package connection

import (
	"sync"
)

// Outbox is the per-connection outbound message queue. It grows by
// doubling when it reaches 70% capacity so a burst of updates never
// blocks the broadcast path, but growth is capped: once the cap is hit,
// new messages are dropped instead of stalling the sender. A slow client
// loses updates; it never slows anyone else down.
type Outbox struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      [][]byte
	head     int
	tail     int
	count    int
	capacity int
	maxCap   int
	closed   bool

	dropped int64
	onDrop  func()
}

// growCapFactor bounds Outbox growth at this multiple of the initial size.
const growCapFactor = 16

// NewOutbox creates an outbox with the given initial capacity.
func NewOutbox(initialCapacity int) *Outbox {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	o := &Outbox{
		buf:      make([][]byte, initialCapacity),
		capacity: initialCapacity,
		maxCap:   initialCapacity * growCapFactor,
	}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Push enqueues a message. Returns false if the outbox is closed. A push
// against a full, max-sized outbox drops the message and still returns
// true: delivery to a slow client is best-effort.
func (o *Outbox) Push(msg []byte) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}

	threshold := (o.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if o.count+1 >= threshold && o.capacity < o.maxCap {
		o.grow()
	}

	if o.count == o.capacity {
		o.dropped++
		if o.onDrop != nil {
			o.onDrop()
		}
		return true
	}

	o.buf[o.tail] = msg
	o.tail = (o.tail + 1) % o.capacity
	o.count++

	o.cond.Signal()
	return true
}

// Pop removes and returns the next message, blocking until one is
// available or the outbox is closed. Returns false once closed and drained.
func (o *Outbox) Pop() ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for o.count == 0 && !o.closed {
		o.cond.Wait()
	}

	if o.count == 0 {
		return nil, false
	}

	msg := o.buf[o.head]
	o.buf[o.head] = nil
	o.head = (o.head + 1) % o.capacity
	o.count--

	return msg, true
}

// Close closes the outbox. Pending messages remain poppable; further
// pushes return false.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	o.cond.Broadcast()
}

// Len returns the number of queued messages.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

// OnDrop installs a callback invoked once per discarded message. Install
// it before the outbox is shared; the callback runs with the outbox lock
// held and must not call back into it.
func (o *Outbox) OnDrop(fn func()) {
	o.onDrop = fn
}

// Dropped returns how many messages were discarded against a full outbox.
func (o *Outbox) Dropped() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

// grow doubles capacity up to maxCap. Caller holds the lock.
func (o *Outbox) grow() {
	newCapacity := o.capacity * 2
	if newCapacity > o.maxCap {
		newCapacity = o.maxCap
	}
	if newCapacity == o.capacity {
		return
	}

	newBuf := make([][]byte, newCapacity)
	if o.count > 0 {
		if o.head < o.tail {
			copy(newBuf, o.buf[o.head:o.tail])
		} else {
			n := copy(newBuf, o.buf[o.head:])
			copy(newBuf[n:], o.buf[:o.tail])
		}
	}

	o.buf = newBuf
	o.head = 0
	o.tail = o.count
	o.capacity = newCapacity
}
