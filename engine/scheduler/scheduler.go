// Package scheduler drives a pipeline at the display's refresh cadence. A FrameScheduler is
// either Idle or Running; stopping and starting again is the only way back to Running.
package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrResizeIgnored is returned by Resize while the scheduler is idle. It is not a failure:
	// the next Start resizes to fit.
	ErrResizeIgnored = errors.New("resize ignored: scheduler not running")

	// ErrNotInitialized is returned by Start when the target has not been initialized.
	ErrNotInitialized = errors.New("target not initialized")

	// ErrAlreadyRunning is returned by Start while the scheduler is running.
	ErrAlreadyRunning = errors.New("scheduler already running")
)

// State is the lifecycle state of a FrameScheduler.
type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Target is what a FrameScheduler drives, typically a swarm.Pipeline.
type Target interface {
	Initialized() bool
	OnResize(width, height int)
	OnFrame(timestamp time.Duration) error
}

// FrameScheduler issues one Target.OnFrame per display refresh while running.
type FrameScheduler interface {
	// Start subscribes to resizes, resizes the target to the display once, and requests the
	// first frame.
	//
	// Returns:
	//   - error: ErrNotInitialized if the target is not initialized, ErrAlreadyRunning if running
	Start() error

	// Stop cancels the pending frame and the resize subscription. A frame callback that was
	// already dispatched by the display finds the scheduler stopped and does nothing. Stop is a
	// no-op while idle and must not be called from inside Target.OnFrame.
	Stop()

	// Resize forwards a size change to the target.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: ErrResizeIgnored while idle
	Resize(width, height int) error

	// State returns the lifecycle state.
	//
	// Returns:
	//   - State: StateIdle or StateRunning
	State() State

	// Frames returns the number of frames issued by the current or last run.
	//
	// Returns:
	//   - uint64: the frame count
	Frames() uint64

	// Done returns a channel closed when the current or last run ends.
	//
	// Returns:
	//   - <-chan struct{}: the channel
	Done() <-chan struct{}

	// Err returns the frame error or recovered panic that stopped the last run, nil after Stop.
	//
	// Returns:
	//   - error: the error
	Err() error
}

type frameScheduler struct {
	mu sync.Mutex

	display   Display
	target    Target
	logger    *zap.Logger
	maxFrames uint64

	state State
	// gen identifies the current run; callbacks of an earlier run see a different value.
	gen         uint64
	cancelFrame func()
	unsubscribe func()
	frames      uint64
	done        chan struct{}
	err         error
}

var _ FrameScheduler = &frameScheduler{}

// NewFrameScheduler creates an idle FrameScheduler.
//
// Parameters:
//   - display: the display pacing the frames
//   - target: the target receiving resizes and frames
//   - options: variadic list of FrameSchedulerBuilderOption functions
//
// Returns:
//   - FrameScheduler: the idle scheduler
func NewFrameScheduler(display Display, target Target, options ...FrameSchedulerBuilderOption) FrameScheduler {
	s := &frameScheduler{
		display: display,
		target:  target,
		logger:  zap.NewNop(),
		done:    make(chan struct{}),
	}
	close(s.done)
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *frameScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return ErrAlreadyRunning
	}
	if !s.target.Initialized() {
		return ErrNotInitialized
	}

	s.gen++
	s.state = StateRunning
	s.frames = 0
	s.err = nil
	s.done = make(chan struct{})

	s.unsubscribe = s.display.OnResize(func(width, height int) {
		_ = s.Resize(width, height)
	})
	width, height := s.display.Size()
	s.target.OnResize(width, height)
	s.schedule(s.gen)

	s.logger.Info("scheduler started", zap.Int("width", width), zap.Int("height", height))
	return nil
}

func (s *frameScheduler) schedule(gen uint64) {
	s.cancelFrame = s.display.RequestFrame(func(timestamp time.Duration) {
		s.tick(gen, timestamp)
	})
}

func (s *frameScheduler) tick(gen uint64, timestamp time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning || s.gen != gen {
		return
	}
	s.cancelFrame = nil

	if err := s.frame(timestamp); err != nil {
		s.logger.Error("frame failed, stopping scheduler", zap.Error(err), zap.Uint64("frame", s.frames))
		s.stop(err)
		return
	}
	s.frames++
	if s.maxFrames > 0 && s.frames >= s.maxFrames {
		s.stop(nil)
		return
	}
	s.schedule(gen)
}

func (s *frameScheduler) frame(timestamp time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("frame panicked: %v", r)
		}
	}()
	return s.target.OnFrame(timestamp)
}

func (s *frameScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop(nil)
}

func (s *frameScheduler) stop(err error) {
	if s.state != StateRunning {
		return
	}
	s.state = StateIdle
	s.gen++
	if s.cancelFrame != nil {
		s.cancelFrame()
		s.cancelFrame = nil
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.err = err
	close(s.done)
	s.logger.Info("scheduler stopped", zap.Uint64("frames", s.frames))
}

func (s *frameScheduler) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return ErrResizeIgnored
	}
	s.target.OnResize(width, height)
	return nil
}

func (s *frameScheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *frameScheduler) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *frameScheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *frameScheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
