package control

import (
	"sync"

	"github.com/eapache/queue"
)

// Mailbox carries settings changes from watcher goroutines to the render thread in FIFO order.
type Mailbox struct {
	mu     sync.Mutex
	q      *queue.Queue
	notify chan struct{}
}

// NewMailbox creates an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		q:      queue.New(),
		notify: make(chan struct{}, 1),
	}
}

// Post appends s and wakes a waiting reader.
func (m *Mailbox) Post(s Settings) {
	m.mu.Lock()
	m.q.Add(s)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Drain empties the mailbox and returns the newest settings. Older entries are superseded
// because every change rebuilds the pipeline from scratch.
//
// Returns:
//   - Settings: the newest settings
//   - bool: false if the mailbox was empty
func (m *Mailbox) Drain() (Settings, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var last Settings
	ok := false
	for m.q.Length() > 0 {
		last = m.q.Remove().(Settings)
		ok = true
	}
	return last, ok
}

// Len returns the number of queued settings.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q.Length()
}

// Notify returns a channel that receives after a Post. One receive may cover several posts.
func (m *Mailbox) Notify() <-chan struct{} {
	return m.notify
}
