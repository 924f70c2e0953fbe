package exercise

import "sync"

// mailbox is an unbounded FIFO queue. Posting never blocks, so completion
// goroutines can always hand their result to the controller loop.
type mailbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool
	signal chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{signal: make(chan struct{}, 1)}
}

// post appends v. It reports false after close.
func (m *mailbox[T]) post(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, v)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// ready fires when messages may be waiting.
func (m *mailbox[T]) ready() <-chan struct{} { return m.signal }

// drain removes and returns everything queued.
func (m *mailbox[T]) drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	return out
}

// close rejects further posts. Queued messages can still be drained.
func (m *mailbox[T]) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
