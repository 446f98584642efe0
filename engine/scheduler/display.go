package scheduler

import (
	"sync"
	"time"
)

// Display is the host surface that paces frames and reports resizes.
type Display interface {
	// Size returns the current drawable size in pixels.
	//
	// Returns:
	//   - int: the width
	//   - int: the height
	Size() (int, int)

	// RequestFrame schedules fn to run once at the next refresh.
	//
	// Parameters:
	//   - fn: the callback, receiving the display time of the refresh
	//
	// Returns:
	//   - func(): cancels the request; a no-op once fn has run
	RequestFrame(fn func(timestamp time.Duration)) (cancel func())

	// OnResize subscribes fn to size changes.
	//
	// Parameters:
	//   - fn: the callback, receiving the new size in pixels
	//
	// Returns:
	//   - func(): removes the subscription
	OnResize(fn func(width, height int)) (unsubscribe func())
}

// FrameQueue holds the pending frame requests of a display. Displays call Flush once per refresh.
type FrameQueue struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]func(time.Duration)
	order   []uint64
}

// Request queues fn for the next Flush.
func (q *FrameQueue) Request(fn func(time.Duration)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		q.pending = make(map[uint64]func(time.Duration))
	}
	id := q.next
	q.next++
	q.pending[id] = fn
	q.order = append(q.order, id)
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.pending, id)
	}
}

// Flush runs the callbacks queued before the call, in request order. Callbacks queued while
// flushing wait for the next Flush.
//
// Parameters:
//   - timestamp: the display time passed to every callback
//
// Returns:
//   - int: the number of callbacks run
func (q *FrameQueue) Flush(timestamp time.Duration) int {
	q.mu.Lock()
	order := q.order
	q.order = nil
	fns := make([]func(time.Duration), 0, len(order))
	for _, id := range order {
		if fn, ok := q.pending[id]; ok {
			fns = append(fns, fn)
			delete(q.pending, id)
		}
	}
	q.mu.Unlock()

	for _, fn := range fns {
		fn(timestamp)
	}
	return len(fns)
}

// Pending returns the number of queued callbacks.
func (q *FrameQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// ResizeNotifier fans size changes out to subscribers.
type ResizeNotifier struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]func(int, int)
}

// Subscribe adds fn and returns its removal.
func (n *ResizeNotifier) Subscribe(fn func(width, height int)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[uint64]func(int, int))
	}
	id := n.next
	n.next++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// Notify calls every subscriber with the new size.
func (n *ResizeNotifier) Notify(width, height int) {
	n.mu.Lock()
	subs := make([]func(int, int), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	for _, fn := range subs {
		fn(width, height)
	}
}

// TickerDisplay is a headless Display refreshing at a fixed rate on its own goroutine.
type TickerDisplay struct {
	frames  FrameQueue
	resizes ResizeNotifier

	mu      sync.Mutex
	width   int
	height  int
	start   time.Time
	stop    chan struct{}
	stopped sync.Once
	done    chan struct{}
}

var _ Display = &TickerDisplay{}

// NewTickerDisplay starts a display of the given size refreshing every interval.
// Close stops it.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//   - interval: the refresh interval
//
// Returns:
//   - *TickerDisplay: the running display
func NewTickerDisplay(width, height int, interval time.Duration) *TickerDisplay {
	d := &TickerDisplay{
		width:  width,
		height: height,
		start:  time.Now(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go d.run(interval)
	return d
}

func (d *TickerDisplay) run(interval time.Duration) {
	defer close(d.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case now := <-ticker.C:
			d.frames.Flush(now.Sub(d.start))
		}
	}
}

func (d *TickerDisplay) Size() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

// Width returns the drawable width, so the display can serve as a renderer surface.
func (d *TickerDisplay) Width() int {
	w, _ := d.Size()
	return w
}

// Height returns the drawable height.
func (d *TickerDisplay) Height() int {
	_, h := d.Size()
	return h
}

func (d *TickerDisplay) RequestFrame(fn func(timestamp time.Duration)) func() {
	return d.frames.Request(fn)
}

func (d *TickerDisplay) OnResize(fn func(width, height int)) func() {
	return d.resizes.Subscribe(fn)
}

// SetSize changes the drawable size and notifies resize subscribers.
func (d *TickerDisplay) SetSize(width, height int) {
	d.mu.Lock()
	d.width, d.height = width, height
	d.mu.Unlock()
	d.resizes.Notify(width, height)
}

// Close stops refreshing and waits for an in-flight refresh to finish. Pending requests never run.
func (d *TickerDisplay) Close() {
	d.stopped.Do(func() { close(d.stop) })
	<-d.done
}
