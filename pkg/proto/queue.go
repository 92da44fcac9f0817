package proto

import "sync"

// ByteQueue is a bounded FIFO of bytes shared by multiple producers
// and a single consumer. Producers push fully serialized messages;
// a multi-chunk push is one critical section, so the chunks land
// back-to-back with nothing interleaved between them.
//
// Peek exposes the head region without copying. Because pushes only
// append at the tail and the accounting keeps peeked bytes reserved
// until they are pulled, a peeked region stays valid until the
// consumer pulls it.
type ByteQueue struct {
	lock sync.Mutex
	buf  []byte
	head int
	size int
}

// NewByteQueue creates a queue with a fixed capacity in bytes.
func NewByteQueue(capacity int) *ByteQueue {
	return &ByteQueue{buf: make([]byte, capacity)}
}

// Push appends the chunks at the tail as one atomic unit. If they do
// not all fit, the queue is left unchanged and ErrQueueOverflow is
// returned.
func (q *ByteQueue) Push(chunks ...[]byte) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if q.size+total > len(q.buf) {
		return ErrQueueOverflow
	}
	for _, c := range chunks {
		tail := (q.head + q.size) % len(q.buf)
		n := copy(q.buf[tail:], c)
		copy(q.buf, c[n:])
		q.size += len(c)
	}
	return nil
}

// Peek returns the contiguous unconsumed region at the head without
// removing it. When the data wraps around the buffer end only the
// part up to the end is returned; the remainder becomes visible
// after the first part is pulled.
func (q *ByteQueue) Peek() []byte {
	q.lock.Lock()
	defer q.lock.Unlock()
	n := q.size
	if m := len(q.buf) - q.head; n > m {
		n = m
	}
	return q.buf[q.head : q.head+n]
}

// Pull removes the first n bytes from the head. Pulling more than
// the queue holds drains it.
func (q *ByteQueue) Pull(n int) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if n > q.size {
		n = q.size
	}
	q.head = (q.head + n) % len(q.buf)
	q.size -= n
}

// Clear resets the queue to empty.
func (q *ByteQueue) Clear() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.head, q.size = 0, 0
}

// Len returns the number of queued bytes.
func (q *ByteQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.size
}

// Cap returns the queue capacity in bytes.
func (q *ByteQueue) Cap() int {
	return len(q.buf)
}
